package core

import (
	"strconv"
	"strings"
)

// RequestKey correlates a screening row with its stored screening run.
type RequestKey string

// Message-type suffixes appended to the transaction token.
var messageTypeSuffixes = map[string]int{
	"SWIFT":    1,
	"FEDWIRE":  2,
	"ISO20022": 3,
}

// MessageTypeSuffix maps a message-type label to its key suffix. Unknown and
// empty labels map to 0.
func MessageTypeSuffix(label string) int {
	return messageTypeSuffixes[label]
}

// DeriveRequestKey concatenates the transaction token and the message-type
// suffix digit with no separator.
func DeriveRequestKey(token, messageType string) RequestKey {
	return RequestKey(token + strconv.Itoa(MessageTypeSuffix(messageType)))
}

// MessageType returns the label of the first "Message <label>" column, in
// header order, that holds a value for the row. It returns "" when none does.
func MessageType(row InputRow) string {
	for _, name := range row.Layout.names {
		if !strings.HasPrefix(name, MessagePrefix) {
			continue
		}
		if row.Value(name) != "" {
			return strings.TrimSpace(strings.TrimPrefix(name, MessagePrefix))
		}
	}
	return ""
}

// RequestKeyFor derives the key of a row as seen by one engine.
func RequestKeyFor(row InputRow, engine EngineTag) RequestKey {
	token := row.Value(engine.Prefix() + ColTransactionToken)
	return DeriveRequestKey(token, MessageType(row))
}
