package utils

import "strings"

// MaskAccount keeps the last four characters of a bank account number.
func MaskAccount(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 4 {
		return "****" + account
	}
	return "****" + account[len(account)-4:]
}
