package domain

import (
	"maps"
	"slices"
)

// Clone returns a deep copy of the aggregate. Stores hand out clones so two
// requests never share nested slices.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Accounts = Accounts{
		Checking: u.Accounts.Checking.clone(),
		Savings:  u.Accounts.Savings.clone(),
		Bitcoin:  u.Accounts.Bitcoin.clone(),
	}
	c.ExternalAccounts = slices.Clone(u.ExternalAccounts)
	c.PendingTransfers = clonePending(u.PendingTransfers)
	c.SavingsGoals = slices.Clone(u.SavingsGoals)
	c.Budget.Categories = slices.Clone(u.Budget.Categories)
	c.SpendingCategories = maps.Clone(u.SpendingCategories)
	c.Notifications = slices.Clone(u.Notifications)
	if u.LockUntil != nil {
		t := *u.LockUntil
		c.LockUntil = &t
	}
	return &c
}

func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Transactions = slices.Clone(a.Transactions)
	return &c
}

func clonePending(in []PendingTransfer) []PendingTransfer {
	out := slices.Clone(in)
	for i := range out {
		if out[i].SettledAt != nil {
			t := *out[i].SettledAt
			out[i].SettledAt = &t
		}
	}
	return out
}
