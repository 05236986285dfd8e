package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"affiliate-platform/internal/models"

	"gorm.io/gorm"
)

func TestRegisterUserCreatesRecord(t *testing.T) {
	svc, db := newTestReferralService(t)
	ctx := context.Background()

	result, err := svc.RegisterUser(ctx, "user_alice", "")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if !result.Created {
		t.Error("expected Created for a new user")
	}
	if result.ReferrerNotFound {
		t.Error("did not expect ReferrerNotFound without a code")
	}
	if len(result.Record.ReferralCode) != GeneratedCodeLength {
		t.Errorf("expected %d-char code, got %q", GeneratedCodeLength, result.Record.ReferralCode)
	}
	if result.Record.ReferredByUserID != nil {
		t.Error("expected no referrer")
	}

	var edges int64
	db.Model(&models.ReferralTracking{}).Count(&edges)
	if edges != 0 {
		t.Errorf("expected no tracking edges, got %d", edges)
	}
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	svc, db := newTestReferralService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterUser(ctx, "user_ref", "")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	first, err := svc.RegisterUser(ctx, "user_bob", referrer.Record.ReferralCode)
	if err != nil {
		t.Fatalf("first RegisterUser failed: %v", err)
	}
	second, err := svc.RegisterUser(ctx, "user_bob", referrer.Record.ReferralCode)
	if err != nil {
		t.Fatalf("second RegisterUser failed: %v", err)
	}

	if second.Created {
		t.Error("second registration should not report Created")
	}
	if second.Record.ReferralCode != first.Record.ReferralCode {
		t.Errorf("code changed between calls: %q -> %q", first.Record.ReferralCode, second.Record.ReferralCode)
	}

	var records, edges int64
	db.Model(&models.UserReferral{}).Where("user_id = ?", "user_bob").Count(&records)
	db.Model(&models.ReferralTracking{}).Where("referred_user_id = ?", "user_bob").Count(&edges)
	if records != 1 {
		t.Errorf("expected 1 record, got %d", records)
	}
	if edges != 1 {
		t.Errorf("expected 1 tracking edge, got %d", edges)
	}
}

func TestRegisterUserWithReferralCode(t *testing.T) {
	svc, _ := newTestReferralService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterUser(ctx, "user_ref", "")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if _, err := svc.UpdateUserReferralCode(ctx, "user_ref", "HIGHROLLER"); err != nil {
		t.Fatalf("UpdateUserReferralCode failed: %v", err)
	}

	// Codes resolve case-insensitively
	result, err := svc.RegisterUser(ctx, "user_new", "highroller")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if result.ReferrerNotFound {
		t.Fatal("expected the referrer to be found")
	}
	if result.Record.ReferredByUserID == nil || *result.Record.ReferredByUserID != referrer.Record.UserID {
		t.Errorf("expected referred_by_user_id %q, got %v", referrer.Record.UserID, result.Record.ReferredByUserID)
	}
	if result.Record.ReferredByCode == nil || *result.Record.ReferredByCode != "HIGHROLLER" {
		t.Errorf("expected referred_by_code HIGHROLLER, got %v", result.Record.ReferredByCode)
	}

	referrals, err := svc.ListReferrals(ctx, "user_ref")
	if err != nil {
		t.Fatalf("ListReferrals failed: %v", err)
	}
	if len(referrals) != 1 {
		t.Fatalf("expected 1 referral, got %d", len(referrals))
	}
	if referrals[0].ReferredUserID != "user_new" || referrals[0].Status != models.ReferralStatusPending {
		t.Errorf("unexpected edge: %+v", referrals[0])
	}

	stats, err := svc.GetReferralStats(ctx, "user_ref")
	if err != nil {
		t.Fatalf("GetReferralStats failed: %v", err)
	}
	if stats.Total != 1 || stats.Pending != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRegisterUserUnknownCodeStillRegisters(t *testing.T) {
	svc, db := newTestReferralService(t)
	ctx := context.Background()

	result, err := svc.RegisterUser(ctx, "user_carol", "NOSUCHCODE")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if !result.Created || !result.ReferrerNotFound {
		t.Errorf("expected Created and ReferrerNotFound, got %+v", result)
	}
	if result.Record.ReferredByCode != nil {
		t.Error("unknown code must not be stored")
	}

	var edges int64
	db.Model(&models.ReferralTracking{}).Count(&edges)
	if edges != 0 {
		t.Errorf("expected no tracking edges, got %d", edges)
	}
}

func TestRegisterUserCodeGenerationExhausted(t *testing.T) {
	svc, _ := newTestReferralService(t)
	ctx := context.Background()

	svc.generateCode = func() (string, error) { return "TAKEN123", nil }
	if _, err := svc.RegisterUser(ctx, "user_first", ""); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	_, err := svc.RegisterUser(ctx, "user_second", "")
	if err == nil {
		t.Fatal("expected an error when every generated code is taken")
	}
	if !errors.Is(err, ErrCodeGenerationExhausted) {
		t.Errorf("expected ErrCodeGenerationExhausted, got %v", err)
	}
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected a storage-kind error, got %v", err)
	}
}

func TestRegisterUserRetriesCodeClaimedBeforeInsert(t *testing.T) {
	svc, db := newTestReferralService(t)
	ctx := context.Background()

	codes := []string{"RACE0001", "FRESH001"}
	svc.generateCode = func() (string, error) {
		code := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return code, nil
	}

	// Claim the code right after the availability check reports it free
	claimed := false
	err := db.Callback().Query().After("gorm:query").Register("test:claim_code", func(tx *gorm.DB) {
		if claimed || tx.Statement.Table != "user_referrals" {
			return
		}
		checksRace := false
		for _, v := range tx.Statement.Vars {
			if v == "RACE0001" {
				checksRace = true
			}
		}
		if !checksRace {
			return
		}
		claimed = true
		now := time.Now().UTC()
		if err := tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO user_referrals (user_id, referral_code, created_at, updated_at) VALUES (?, ?, ?, ?)",
			"user_rival", "RACE0001", now, now,
		).Error; err != nil {
			t.Errorf("failed to claim code: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}

	result, err := svc.RegisterUser(ctx, "user_late", "")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected the code to be claimed mid-registration")
	}
	if !result.Created || result.Record.ReferralCode != "FRESH001" {
		t.Errorf("expected a fresh code after the collision, got %+v", result.Record)
	}

	var rival models.UserReferral
	if err := db.Where("user_id = ?", "user_rival").First(&rival).Error; err != nil {
		t.Fatalf("failed to load rival record: %v", err)
	}
	if rival.ReferralCode != "RACE0001" {
		t.Errorf("rival should keep its code, got %q", rival.ReferralCode)
	}
}

func TestRegisterUserRequiresUserID(t *testing.T) {
	svc, _ := newTestReferralService(t)

	_, err := svc.RegisterUser(context.Background(), "   ", "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGetUserReferralDataMissing(t *testing.T) {
	svc, _ := newTestReferralService(t)

	record, err := svc.GetUserReferralData(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetUserReferralData failed: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record, got %+v", record)
	}
}

func TestCheckReferralCodeAvailability(t *testing.T) {
	svc, _ := newTestReferralService(t)
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, "user_owner", ""); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if _, err := svc.UpdateUserReferralCode(ctx, "user_owner", "JACKPOT"); err != nil {
		t.Fatalf("UpdateUserReferralCode failed: %v", err)
	}

	tests := []struct {
		name    string
		code    string
		exclude string
		want    bool
	}{
		{"free code", "FREESPIN", "", true},
		{"taken code", "JACKPOT", "", false},
		{"taken code any case", "jackpot", "", false},
		{"own code when excluded", "JACKPOT", "user_owner", true},
		{"taken for someone else", "JACKPOT", "user_other", false},
		{"empty", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CheckReferralCodeAvailability(ctx, tt.code, tt.exclude)
			if err != nil {
				t.Fatalf("CheckReferralCodeAvailability failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("available = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateAndCheckCodeSuggestsAlternatives(t *testing.T) {
	svc, _ := newTestReferralService(t)
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, "user_owner", ""); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if _, err := svc.UpdateUserReferralCode(ctx, "user_owner", "BONUS"); err != nil {
		t.Fatalf("UpdateUserReferralCode failed: %v", err)
	}

	result, err := svc.ValidateAndCheckCode(ctx, "bonus", "user_other")
	if err != nil {
		t.Fatalf("ValidateAndCheckCode failed: %v", err)
	}
	if result.IsValid || !result.Taken {
		t.Fatalf("expected a taken code, got %+v", result)
	}
	if len(result.Suggestions) == 0 || len(result.Suggestions) > maxSuggestions {
		t.Fatalf("expected 1..%d suggestions, got %v", maxSuggestions, result.Suggestions)
	}
	for _, s := range result.Suggestions {
		if s == "BONUS" {
			t.Error("suggestions must not repeat the taken code")
		}
		if !ValidateCustomReferralCode(s).IsValid {
			t.Errorf("suggestion %q is not a valid code", s)
		}
	}

	// The owner may keep their own code
	own, err := svc.ValidateAndCheckCode(ctx, "BONUS", "user_owner")
	if err != nil {
		t.Fatalf("ValidateAndCheckCode failed: %v", err)
	}
	if !own.IsValid {
		t.Errorf("expected own code to validate, got %+v", own)
	}

	// Format failures never hit the database
	bad, err := svc.ValidateAndCheckCode(ctx, "no", "user_other")
	if err != nil {
		t.Fatalf("ValidateAndCheckCode failed: %v", err)
	}
	if bad.IsValid || bad.Taken {
		t.Errorf("expected a format failure, got %+v", bad)
	}
}

func TestUpdateUserReferralCode(t *testing.T) {
	svc, _ := newTestReferralService(t)
	ctx := context.Background()

	for _, id := range []string{"user_a", "user_b"} {
		if _, err := svc.RegisterUser(ctx, id, ""); err != nil {
			t.Fatalf("RegisterUser(%s) failed: %v", id, err)
		}
	}

	updated, err := svc.UpdateUserReferralCode(ctx, "user_a", "vip-club")
	if err != nil {
		t.Fatalf("UpdateUserReferralCode failed: %v", err)
	}
	if updated.ReferralCode != "VIP-CLUB" {
		t.Errorf("expected stored code VIP-CLUB, got %q", updated.ReferralCode)
	}

	stored, err := svc.GetUserReferralData(ctx, "user_a")
	if err != nil {
		t.Fatalf("GetUserReferralData failed: %v", err)
	}
	if stored.ReferralCode != "VIP-CLUB" {
		t.Errorf("expected persisted code VIP-CLUB, got %q", stored.ReferralCode)
	}

	// Setting your own code again is allowed
	if _, err := svc.UpdateUserReferralCode(ctx, "user_a", "VIP-CLUB"); err != nil {
		t.Errorf("re-setting own code failed: %v", err)
	}

	_, err = svc.UpdateUserReferralCode(ctx, "user_b", "VIP-CLUB")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict for a taken code, got %v", err)
	}

	_, err = svc.UpdateUserReferralCode(ctx, "user_missing", "FRESH")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found for an unregistered user, got %v", err)
	}
}

func TestUpdateTrackingStatus(t *testing.T) {
	svc, _ := newTestReferralService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterUser(ctx, "user_ref", "")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if _, err := svc.RegisterUser(ctx, "user_one", referrer.Record.ReferralCode); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if _, err := svc.RegisterUser(ctx, "user_two", referrer.Record.ReferralCode); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	edges, err := svc.ListReferrals(ctx, "user_ref")
	if err != nil || len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d (%v)", len(edges), err)
	}

	completed, err := svc.UpdateTrackingStatus(ctx, edges[0].ID, models.ReferralStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTrackingStatus failed: %v", err)
	}
	if completed.Status != models.ReferralStatusCompleted || completed.CompletedAt == nil {
		t.Errorf("expected completed edge with completed_at, got %+v", completed)
	}

	if _, err := svc.UpdateTrackingStatus(ctx, edges[1].ID, models.ReferralStatusCancelled); err != nil {
		t.Fatalf("UpdateTrackingStatus failed: %v", err)
	}

	// Terminal states are final
	_, err = svc.UpdateTrackingStatus(ctx, edges[0].ID, models.ReferralStatusCancelled)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict leaving a terminal state, got %v", err)
	}

	_, err = svc.UpdateTrackingStatus(ctx, edges[1].ID, models.ReferralStatusPending)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error moving back to pending, got %v", err)
	}

	_, err = svc.UpdateTrackingStatus(ctx, 9999, models.ReferralStatusCompleted)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	stats, err := svc.GetReferralStats(ctx, "user_ref")
	if err != nil {
		t.Fatalf("GetReferralStats failed: %v", err)
	}
	want := models.ReferralStats{Total: 2, Completed: 1, Cancelled: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}
