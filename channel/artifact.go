package channel

import "encoding/base64"

// PairingArtifact converts a raw one-time pairing code into the renderable
// payload delivered to observers: a data URL the requesting client can
// display or turn into a scannable code. The observer owns presentation.
func PairingArtifact(code string) string {
	return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(code))
}
