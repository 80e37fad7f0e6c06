package model

// Source produces an ordered sequence of flow records.
// Next returns io.EOF once the sequence is exhausted.
type Source interface {
	Next() (Record, error)
}
