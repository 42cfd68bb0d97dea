package services

import (
	"slices"

	"github.com/shopmate/shopmate/internal/models"
)

var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPendingShopper: {
		models.StatusAcceptedByShopper,
		models.StatusCancelled,
	},
	models.StatusAcceptedByShopper: {
		models.StatusShopperAtShop,
		models.StatusCancelled,
	},
	models.StatusShopperAtShop: {
		models.StatusShoppingInProgress,
		models.StatusCancelled,
	},
	models.StatusShoppingInProgress: {
		models.StatusShopperRevisedOrder,
		models.StatusFinalShopping,
		models.StatusBillUploaded,
		models.StatusCancelled,
	},
	models.StatusShopperRevisedOrder: {
		models.StatusCustomerReviewingRevision,
		models.StatusCancelled,
	},
	models.StatusCustomerReviewingRevision: {
		models.StatusCustomerApprovedRevision,
		models.StatusRevisionRejected,
		models.StatusCancelled,
	},
	models.StatusRevisionRejected: {
		models.StatusShoppingInProgress,
		models.StatusCancelled,
	},
	models.StatusCustomerApprovedRevision: {
		models.StatusFinalShopping,
		models.StatusCancelled,
	},
	models.StatusFinalShopping: {
		models.StatusBillUploaded,
		models.StatusOutForDelivery,
		models.StatusCancelled,
	},
	models.StatusBillUploaded: {
		models.StatusBillApproved,
		models.StatusBillRejected,
	},
	models.StatusBillApproved: {
		models.StatusOutForDelivery,
		models.StatusCancelled,
	},
	models.StatusBillRejected: {
		models.StatusShoppingInProgress,
		models.StatusFinalShopping,
		models.StatusCancelled,
	},
	models.StatusOutForDelivery: {
		models.StatusDelivered,
	},
}

// CanTransition reports whether the lifecycle table has an edge from → to.
func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// AllowedTransitions returns the statuses reachable in one step from status.
func AllowedTransitions(from models.OrderStatus) []models.OrderStatus {
	return slices.Clone(orderTransitions[from])
}

var shopperTargets = map[models.OrderStatus]bool{
	models.StatusAcceptedByShopper:         true,
	models.StatusShopperAtShop:             true,
	models.StatusShoppingInProgress:        true,
	models.StatusShopperRevisedOrder:       true,
	models.StatusCustomerReviewingRevision: true,
	models.StatusFinalShopping:             true,
	models.StatusBillUploaded:              true,
	models.StatusOutForDelivery:            true,
	models.StatusDelivered:                 true,
}

var customerTargets = map[models.OrderStatus]bool{
	models.StatusCustomerApprovedRevision: true,
	models.StatusRevisionRejected:         true,
	models.StatusBillApproved:             true,
	models.StatusBillRejected:             true,
}

// authorizeTransition checks that actor may move order from → to. It runs
// before the table lookup and never touches the order.
func authorizeTransition(order *models.Order, actor Actor, from, to models.OrderStatus) error {
	switch a := actor.(type) {
	case SystemActor:
		return nil
	case CustomerActor:
		if order.CustomerID != a.ID {
			return accessDenied("order belongs to another customer")
		}
		if customerTargets[to] || to == models.StatusCancelled || eitherPartyEdge(from, to) {
			return nil
		}
		return accessDenied("customers cannot move an order to %s", to)
	case ShopperActor:
		if to == models.StatusAcceptedByShopper {
			if order.ShopperID != nil && !order.IsAssignedTo(a.ID) {
				return accessDenied("order is assigned to another shopper")
			}
			return nil
		}
		if !order.IsAssignedTo(a.ID) {
			return accessDenied("order is not assigned to this shopper")
		}
		if shopperTargets[to] || to == models.StatusCancelled {
			return nil
		}
		return accessDenied("shoppers cannot move an order to %s", to)
	default:
		return accessDenied("unknown actor")
	}
}

// eitherPartyEdge marks the one edge both the customer and the shopper may drive.
func eitherPartyEdge(from, to models.OrderStatus) bool {
	return from == models.StatusCustomerApprovedRevision && to == models.StatusFinalShopping
}

// canView reports whether actor may read order. Online shoppers may also see
// orders still waiting for a shopper.
func canView(order *models.Order, actor Actor) bool {
	switch a := actor.(type) {
	case SystemActor:
		return true
	case CustomerActor:
		return order.CustomerID == a.ID
	case ShopperActor:
		return order.IsAssignedTo(a.ID) || (order.ShopperID == nil && order.Status == models.StatusPendingShopper)
	default:
		return false
	}
}

var statusMessages = map[models.OrderStatus]string{
	models.StatusPendingShopper:            "Order placed and waiting for a shopper",
	models.StatusAcceptedByShopper:         "A shopper accepted your order",
	models.StatusShopperAtShop:             "Your shopper has reached the shop",
	models.StatusShoppingInProgress:        "Your shopper is picking your items",
	models.StatusShopperRevisedOrder:       "Your shopper revised the order",
	models.StatusCustomerReviewingRevision: "Please review the revised order",
	models.StatusRevisionRejected:          "The revision was rejected",
	models.StatusCustomerApprovedRevision:  "The revision was approved",
	models.StatusFinalShopping:             "Your shopper is finishing the shopping",
	models.StatusBillUploaded:              "The bill has been uploaded for review",
	models.StatusBillApproved:              "The bill was approved",
	models.StatusBillRejected:              "The bill was rejected",
	models.StatusOutForDelivery:            "Your order is out for delivery",
	models.StatusDelivered:                 "Your order has been delivered",
	models.StatusCancelled:                 "The order was cancelled",
	models.StatusRefunded:                  "The order was refunded",
}

func statusMessage(status models.OrderStatus) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return string(status)
}
