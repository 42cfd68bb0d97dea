package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
)

func boolPtr(v bool) *bool       { return &v }
func stringPtr(v string) *string { return &v }

func newShopperFixture() (*ShopperService, *memShopperStore, models.Shopper) {
	shopper := models.Shopper{ID: uuid.New(), Name: "Ravi", IsOnline: true, UPIID: "ravi@upi"}
	store := newMemShopperStore(shopper)
	return NewShopperService(store, discardLogger()), store, shopper
}

func TestShopperUpdateProfile(t *testing.T) {
	t.Parallel()

	svc, _, shopper := newShopperFixture()
	ctx := context.Background()
	actor := ShopperActor{ID: shopper.ID}

	got, err := svc.UpdateProfile(ctx, actor, ShopperUpdate{IsOnline: boolPtr(false), UPIID: stringPtr(" ravi.k@okbank ")})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.IsOnline || got.UPIID != "ravi.k@okbank" {
		t.Fatalf("unexpected profile %+v", got)
	}

	online, err := svc.IsOnline(ctx, shopper.ID)
	if err != nil || online {
		t.Fatalf("IsOnline() = %v, %v; want false, nil", online, err)
	}

	if _, err := svc.UpdateProfile(ctx, actor, ShopperUpdate{IsOnline: boolPtr(true)}); err != nil {
		t.Fatalf("UpdateProfile(online) error = %v", err)
	}
	profile, err := svc.Profile(ctx, actor)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if !profile.IsOnline || profile.UPIID != "ravi.k@okbank" {
		t.Fatalf("unexpected profile after going online %+v", profile)
	}
}

func TestShopperUpdateProfileRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		actor   func(models.Shopper) Actor
		update  ShopperUpdate
		wantErr error
	}{
		{
			name:    "customer",
			actor:   func(models.Shopper) Actor { return CustomerActor{ID: uuid.New()} },
			update:  ShopperUpdate{IsOnline: boolPtr(true)},
			wantErr: ErrAccessDenied,
		},
		{
			name:    "admin",
			actor:   func(models.Shopper) Actor { return SystemActor{Subject: "ops"} },
			update:  ShopperUpdate{IsOnline: boolPtr(true)},
			wantErr: ErrAccessDenied,
		},
		{
			name:    "empty update",
			actor:   func(s models.Shopper) Actor { return ShopperActor{ID: s.ID} },
			wantErr: ErrValidation,
		},
		{
			name:    "malformed upi id",
			actor:   func(s models.Shopper) Actor { return ShopperActor{ID: s.ID} },
			update:  ShopperUpdate{UPIID: stringPtr("not-an-address")},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown shopper",
			actor:   func(models.Shopper) Actor { return ShopperActor{ID: uuid.New()} },
			update:  ShopperUpdate{IsOnline: boolPtr(true)},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, store, shopper := newShopperFixture()
			_, err := svc.UpdateProfile(context.Background(), tc.actor(shopper), tc.update)
			requireErrorIs(t, err, tc.wantErr)

			stored, _ := store.GetByID(context.Background(), shopper.ID)
			if !stored.IsOnline || stored.UPIID != "ravi@upi" {
				t.Fatalf("profile changed on rejected update: %+v", stored)
			}
		})
	}
}

func TestShopperIsOnlineUnknown(t *testing.T) {
	t.Parallel()

	svc, _, _ := newShopperFixture()
	_, err := svc.IsOnline(context.Background(), uuid.New())
	requireErrorIs(t, err, ErrNotFound)
}
