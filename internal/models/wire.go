package models

// Wire status values exposed to clients in place of IN/OUT.
const (
	StatusIncoming = "Incoming"
	StatusOutgoing = "Outgoing"
)

// WireRecord is the JSON shape of a record as served to clients.
type WireRecord struct {
	ID        string  `json:"id"`
	Date      string  `json:"date"`
	Operation string  `json:"operation"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	Category  string  `json:"category,omitempty"`
}

// ToWire converts r to its client representation.
func (r Record) ToWire() WireRecord {
	status := StatusOutgoing
	if r.Direction == DirectionIn {
		status = StatusIncoming
	}
	return WireRecord{
		ID:        r.ID,
		Date:      r.Date,
		Operation: r.Description,
		Amount:    r.Amount.InexactFloat64(),
		Status:    status,
		Category:  r.Category,
	}
}

// WireRecords converts records, never returning nil so it encodes as [].
func WireRecords(records []Record) []WireRecord {
	out := make([]WireRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToWire())
	}
	return out
}
