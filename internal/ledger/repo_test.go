package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
)

// The tables are created by hand because the real schema relies on Postgres
// enums and gen_random_uuid(), which sqlite cannot express.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	ddl := []string{
		`CREATE TABLE credit_accounts (
			id text PRIMARY KEY,
			user_id text NOT NULL UNIQUE,
			credits integer NOT NULL DEFAULT 0 CHECK (credits >= 0),
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE credit_entries (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			kind text,
			type text NOT NULL,
			state text NOT NULL,
			amount integer NOT NULL,
			metadata text,
			created_at datetime,
			updated_at datetime
		)`,
	}
	for _, stmt := range ddl {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

func seedAccount(t *testing.T, repo Repository, credits int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	err := repo.CreateAccount(context.Background(), &models.CreditAccount{
		ID:      uuid.New(),
		UserID:  userID,
		Credits: credits,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return userID
}

func TestDebitIfSufficientIsConditional(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()
	userID := seedAccount(t, repo, 75)

	debited, err := repo.DebitIfSufficient(ctx, userID, 75)
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if !debited {
		t.Fatal("expected first debit to pass with balance == cost")
	}

	// The balance is spent; a retry of the same debit must hit the guard.
	debited, err = repo.DebitIfSufficient(ctx, userID, 75)
	if err != nil {
		t.Fatalf("second debit: %v", err)
	}
	if debited {
		t.Fatal("expected second debit to be rejected")
	}

	account, err := repo.FindAccount(ctx, userID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account == nil || account.Credits != 0 {
		t.Fatalf("expected balance 0, got %+v", account)
	}
}

func TestDebitIfSufficientLeavesShortBalanceUntouched(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()
	userID := seedAccount(t, repo, 50)

	debited, err := repo.DebitIfSufficient(ctx, userID, 75)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if debited {
		t.Fatal("expected debit above balance to be rejected")
	}

	account, err := repo.FindAccount(ctx, userID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account.Credits != 50 {
		t.Fatalf("expected balance unchanged at 50, got %d", account.Credits)
	}
}

func TestCreditUnknownAccountReportsMiss(t *testing.T) {
	repo := NewRepository(newRepoDB(t))

	credited, err := repo.Credit(context.Background(), uuid.New(), 25)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credited {
		t.Fatal("expected credit against a missing account to affect no rows")
	}
}

func TestTransitionEntrySettlesExactlyOnce(t *testing.T) {
	repo := NewRepository(newRepoDB(t))
	ctx := context.Background()

	entry := &models.CreditEntry{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Kind:   enums.ActionKindAvatarVideo,
		Type:   enums.CreditEntryTypeReserve,
		State:  enums.ReservationStateReserved,
		Amount: 75,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	moved, err := repo.TransitionEntry(ctx, entry.ID,
		enums.ReservationStateReserved, enums.ReservationStateRefunded)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatal("expected reserved entry to move to refunded")
	}

	moved, err = repo.TransitionEntry(ctx, entry.ID,
		enums.ReservationStateReserved, enums.ReservationStateRefunded)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if moved {
		t.Fatal("expected retried transition to find no reserved row")
	}

	stored, err := repo.FindEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("find entry: %v", err)
	}
	if stored.State != enums.ReservationStateRefunded {
		t.Fatalf("expected refunded state, got %s", stored.State)
	}
}
