package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
	ctxUsername
)

func WithIdentity(ctx context.Context, userID int64, role int, username string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	ctx = context.WithValue(ctx, ctxUsername, username)
	return ctx
}

func UserID(ctx context.Context) (int64, error) {
	if v, ok := ctx.Value(ctxUserID).(int64); ok && v != 0 {
		return v, nil
	}
	return 0, errors.New("userId not in context")
}

func RoleCode(ctx context.Context) (int, error) {
	if v, ok := ctx.Value(ctxRole).(int); ok && v != 0 {
		return v, nil
	}
	return 0, errors.New("role not in context")
}

func Username(ctx context.Context) string {
	v, _ := ctx.Value(ctxUsername).(string)
	return v
}
