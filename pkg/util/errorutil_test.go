package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainErrorPassesThrough(t *testing.T) {
	orig := NewConflict("already suspended", nil)
	got := ToDomainError(orig)
	if got.Code != "CONFLICT" || got.HTTPStatus != http.StatusConflict {
		t.Fatalf("got %s/%d, want CONFLICT/409", got.Code, got.HTTPStatus)
	}
}

func TestToDomainErrorNoRows(t *testing.T) {
	got := ToDomainError(fmt.Errorf("load account: %w", pgx.ErrNoRows))
	if got.Code != "NOT_FOUND" || got.HTTPStatus != http.StatusNotFound {
		t.Fatalf("got %s/%d, want NOT_FOUND/404", got.Code, got.HTTPStatus)
	}
}

func TestToDomainErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "suspensions_one_active_per_account"}
	got := ToDomainError(fmt.Errorf("insert suspension: %w", pgErr))
	if got.Code != "CONFLICT" || got.HTTPStatus != http.StatusConflict {
		t.Fatalf("got %s/%d, want CONFLICT/409", got.Code, got.HTTPStatus)
	}
	if got.Details["constraint"] != "suspensions_one_active_per_account" {
		t.Fatalf("constraint detail missing: %v", got.Details)
	}
}

func TestToDomainErrorOtherPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	got := ToDomainError(pgErr)
	if got.Code != "INTERNAL_ERROR" || got.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("got %s/%d, want INTERNAL_ERROR/500", got.Code, got.HTTPStatus)
	}
}

func TestToDomainErrorGeneric(t *testing.T) {
	got := ToDomainError(errors.New("boom"))
	if got.Code != "INTERNAL_ERROR" || got.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("got %s/%d, want INTERNAL_ERROR/500", got.Code, got.HTTPStatus)
	}
}
