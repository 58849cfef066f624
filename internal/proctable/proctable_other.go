//go:build !unix

package proctable

// New reports ErrUnsupported.
func New() (Table, error) {
	return nil, ErrUnsupported
}
