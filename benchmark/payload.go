package benchmark

import "fmt"

// Size constants used by the catalog
const (
	KiB = 1024
	MiB = 1024 * KiB
)

// generatePayload returns n bytes cycling through 0..255, the fixed pattern
// every byte-oriented target hashes, encrypts or stores.
func generatePayload(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i % 256)
	}
	return buf
}

// uniquePayload stamps the trial index into the first two bytes of base so
// that every trial writes distinct content. base is modified in place.
func uniquePayload(base []byte, i int) []byte {
	if len(base) > 0 {
		base[0] = byte(i % 256)
	}
	if len(base) > 1 {
		base[1] = byte((i / 256) % 256)
	}
	return base
}

// generateTextRecords produces count free-text records, each carrying an
// email, a phone number, an SSN and a street address.
func generateTextRecords(count int) []string {
	records := make([]string, count)
	for i := range records {
		records[i] = fmt.Sprintf(
			"Record %d: Contact john.doe%d@example.com or call 555-%04d-%04d. "+
				"SSN: %03d-%02d-%04d. Address: %d Main St, City, ST %d",
			i, i,
			i%10000, (i+1234)%10000,
			(i%900)+100, (i%90)+10, (i%9000)+1000,
			(i%900)+100, (i%90000)+10000,
		)
	}
	return records
}

// generateJSONRecords produces count nested documents with PII in several
// fields, shaped like decoded JSON (map[string]any).
func generateJSONRecords(count int) []map[string]any {
	records := make([]map[string]any, count)
	for i := range records {
		records[i] = map[string]any{
			"id": float64(i),
			"user": map[string]any{
				"name":  fmt.Sprintf("John Doe %d", i),
				"email": fmt.Sprintf("john.doe%d@example.com", i),
				"phone": fmt.Sprintf("555-%04d-%04d", i%10000, (i+1234)%10000),
				"ssn":   fmt.Sprintf("%03d-%02d-%04d", (i%900)+100, (i%90)+10, (i%9000)+1000),
			},
			"metadata": map[string]any{
				"created_at": "2024-01-01T00:00:00Z",
				"ip_address": fmt.Sprintf("192.168.%d.%d", i%256, (i+1)%256),
			},
		}
	}
	return records
}
