package nep

import (
	"errors"
	"sort"
)

// ErrNoPremise is returned when an account has no service address with a premise id
var ErrNoPremise = errors.New("account has no premise ids")

// PremiseIDs returns the distinct premise ids of the account, sorted
func (a *AccountResponse) PremiseIDs() []string {
	if a == nil || a.MyAccount == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, addr := range a.MyAccount.ServiceAddresses {
		if addr.PremiseID == "" {
			continue
		}
		if _, ok := seen[addr.PremiseID]; ok {
			continue
		}
		seen[addr.PremiseID] = struct{}{}
		ids = append(ids, addr.PremiseID)
	}
	sort.Strings(ids)
	return ids
}

// SelectPremise picks the premise to report on. Only one premise is
// exported; with several, the lexicographically smallest is used so the
// choice is stable for the same account.
func (a *AccountResponse) SelectPremise() (string, error) {
	ids := a.PremiseIDs()
	if len(ids) == 0 {
		return "", ErrNoPremise
	}
	return ids[0], nil
}
