package transport

import "context"

func withAccount(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, accountKey{}, id)
}

// accountFrom returns the account set by requireAccount.
func accountFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(accountKey{}).(int64)
	return id
}
