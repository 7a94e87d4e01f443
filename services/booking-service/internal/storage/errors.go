package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

const (
	codeExclusionViolation  = "23P01"
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

func IsConflict(err error) bool {
	return hasCode(err, codeExclusionViolation) || hasCode(err, codeUniqueViolation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || hasCode(err, codeInvalidText) || hasCode(err, codeForeignKeyViolation)
}

// translate maps driver errors onto the model sentinels callers branch on.
// Ids that are not valid uuids can never match a row, so they read as not found.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return model.ErrNotFound
	case IsConflict(err):
		return model.ErrSlotTaken
	}
	return err
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
