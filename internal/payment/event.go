package payment

// Provider webhook event names.
const (
	EventChargeCompleted = "OPENPIX:CHARGE_COMPLETED"
	EventChargeExpired   = "OPENPIX:CHARGE_EXPIRED"
	EventTest            = "teste_webhook"
)

// Metadata keys written onto every charge and read back from events.
const (
	InfoTransactionID = "ID"
	InfoBuyerName     = "Nome"
	InfoBuyerPhone    = "Telefone"
	InfoItemKind      = "Tipo"
	InfoOrigin        = "Origin"
)

// Event is the provider's webhook payload. Charge events carry the
// name under "event"; the endpoint-verification ping uses "evento".
type Event struct {
	Event  string `json:"event"`
	Evento string `json:"evento"`
	Charge struct {
		CorrelationID  string `json:"correlationID"`
		Status         string `json:"status"`
		Value          int64  `json:"value"`
		AdditionalInfo []KV   `json:"additionalInfo"`
	} `json:"charge"`
}

// Info returns the metadata value for a key, or "" when absent.
func (e *Event) Info(key string) string {
	for _, kv := range e.Charge.AdditionalInfo {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// IsTest reports whether this is the provider's endpoint-verification
// ping, which must be acknowledged without side effects.
func (e *Event) IsTest() bool {
	return e.Event == EventTest || e.Evento == EventTest
}
