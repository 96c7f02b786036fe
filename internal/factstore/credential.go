package factstore

import (
	"regexp"
	"strings"
)

// credentialTypes mirrors the Credential type enum from the data model.
var credentialTypes = map[string]bool{
	"token": true, "password": true, "api_key": true,
	"ssh": true, "bearer": true, "other": true,
}

var credentialKeywordRE = regexp.MustCompile(
	`(?i)\b(api[_\-]?key|password|passwd|secret|token|bearer|ssh[_\-]?key|access[_\-]?key|private[_\-]?key)\b`,
)

// isCredentialLike flags a candidate fact as sensitive based on its key or
// free text mentioning a recognised credential keyword.
func isCredentialLike(args StoreArgs) bool {
	if credentialTypes[strings.ToLower(args.Key)] {
		return true
	}
	if credentialKeywordRE.MatchString(args.Key) {
		return true
	}
	return IsSensitiveText(args.Text)
}

// IsSensitiveText reports whether free text mentions a recognised
// credential keyword, independent of any structured StoreArgs fields.
// Exported so callers outside this package (the capture path in the
// boundary adapter) can skip sensitive spans before they ever reach Store.
func IsSensitiveText(text string) bool {
	return credentialKeywordRE.MatchString(text)
}

// parseCredentialPayload extracts {service, type, secret} from the
// structured triple a credential-like StoreArgs is expected to carry:
// Entity names the service, Key names the credential type (falling back to
// "other" when unrecognised), and Value holds the secret itself. A payload
// that cannot supply a non-empty service and secret is refused per §4.4.
func parseCredentialPayload(args StoreArgs) (service, credType, secret string, ok bool) {
	service = strings.TrimSpace(args.Entity)
	secret = args.Value
	if service == "" || secret == "" {
		return "", "", "", false
	}

	credType = strings.ToLower(strings.TrimSpace(args.Key))
	if !credentialTypes[credType] {
		credType = "other"
	}
	return service, credType, secret, true
}
