package repository

import "encoding/json"

// jsonColumn marshals v for storage in a JSON column.  Nil slices are
// stored as an empty array rather than NULL so scans never need a null
// check.
func jsonColumn(v any) ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

// scanJSON unmarshals a JSON column into dst, treating empty and NULL
// values as an absent collection.
func scanJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
