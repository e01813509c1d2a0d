package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxProfileID ctxKey = iota
	ctxBusinessID
	ctxRole
)

func WithIdentity(ctx context.Context, profileID, businessID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxProfileID, profileID)
	ctx = context.WithValue(ctx, ctxBusinessID, businessID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func ProfileID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxProfileID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("profile_id not in context")
}

func BusinessID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxBusinessID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("business_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
