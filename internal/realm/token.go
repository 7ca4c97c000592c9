package realm

import "encoding/base64"

// BranchToken renders a branch delegate id as the bearer token clients
// present for it: URL-safe base64 of the raw id bytes, matching the shape
// realmauth.Authenticate expects for branch credentials.
func BranchToken(branchID string) string {
	return base64.URLEncoding.EncodeToString([]byte(branchID))
}
