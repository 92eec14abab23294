package domain

// TransferProgress is recomputed on every chunk boundary. A Total <= 0 means the
// source declared no length and consumers must render indeterminate progress.
type TransferProgress struct {
	Transferred int64
	Total       int64
}

func (p TransferProgress) Known() bool {
	return p.Total > 0
}

// Percent is floor(100*transferred/total), or 0 when the total is unknown.
func (p TransferProgress) Percent() int {
	if !p.Known() {
		return 0
	}
	pct := p.Transferred * 100 / p.Total
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}
