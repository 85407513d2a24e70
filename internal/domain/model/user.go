package model

// BankDetails are the payout destination fields kept on a creator.
type BankDetails struct {
	AccountNumber string
	BankCode      string
	BankName      string
	AccountName   string
	// RecipientCodes caches provider recipient handles by provider key.
	RecipientCodes map[string]string
}

func (b BankDetails) Complete() bool {
	return b.AccountNumber != "" && b.BankCode != ""
}

// User is the slice of a platform user the payment core reads.
type User struct {
	ID    string
	Email string
	Name  string
	Bank  BankDetails
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// RecipientCode returns the cached recipient handle for provider, if any.
func (u *User) RecipientCode(provider string) string {
	if u == nil || u.Bank.RecipientCodes == nil {
		return ""
	}
	return u.Bank.RecipientCodes[provider]
}

// Bank is one entry of a provider bank directory.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
