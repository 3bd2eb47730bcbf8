package network

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

type signatureParams struct {
	Date          string
	ContentLength int
	Method        string
	ContentType   string
	Resource      string
}

// buildSignature computes the SharedKey authorization header value for one
// request. The canonical string is newline-joined in a fixed order and must
// match the server side byte for byte:
//
//	{method}\n{contentLength}\n{contentType}\nx-ms-date:{date}\n{resource}
func buildSignature(workspaceID string, sharedKey string, params signatureParams) (string, error) {
	decodedKey, err := base64.StdEncoding.DecodeString(sharedKey)
	if err != nil {
		return "", &ConfigurationError{Reason: "shared key is not valid base64", Err: err}
	}

	canonical := strings.Join([]string{
		params.Method,
		fmt.Sprintf("%d", params.ContentLength),
		params.ContentType,
		"x-ms-date:" + params.Date,
		params.Resource,
	}, "\n")

	mac := hmac.New(sha256.New, decodedKey)
	if _, err := mac.Write([]byte(canonical)); err != nil {
		return "", fmt.Errorf("write hmac: %w", err)
	}
	encodedHash := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedKey %s:%s", workspaceID, encodedHash), nil
}
