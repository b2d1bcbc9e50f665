package pipeline

import "slicehouse/internal/store"

// warehouseReader adapts a store.Warehouse to the Reader interface.
type warehouseReader struct {
	wh *store.Warehouse
}

// NewReader returns a Reader over the given warehouse.
func NewReader(wh *store.Warehouse) Reader {
	return &warehouseReader{wh: wh}
}

func (r *warehouseReader) Scan(table string) ([]store.Row, error) {
	t, err := r.wh.Table(table)
	if err != nil {
		return nil, err
	}
	return t.Scan(), nil
}

func (r *warehouseReader) Lookup(table string, key interface{}) (store.Row, bool) {
	t, err := r.wh.Table(table)
	if err != nil {
		return nil, false
	}
	return t.Get(key)
}
