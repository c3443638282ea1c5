// Package accounts implements the user account lifecycle on top of
// storage.AccountStore.
//
// Anything that touches credentials, the profile or API tokens requires a
// secure session token. Changing the name or password rotates both session
// slots atomically and hands the new pair back to the caller; every other
// outstanding session token stops verifying.
//
//	svc := accounts.NewService(store, hasher, accounts.DefaultConfig(), logger, metrics, nil)
//	res, err := svc.Login(ctx, accounts.LoginRequest{Name: "alice", Password: pw, Secure: true})
package accounts
