package snapshot

import "gigadex/domain/account"

type Sink interface {
	PutBatch([]account.Update) error
}

// Writer persists the raw accounts behind a State for warm starts.
type Writer struct {
	Sink Sink
	last uint64
}

// Write stores st unless its generation was already written.
func (w *Writer) Write(st *State) (bool, error) {
	if st == nil || st.Generation <= w.last {
		return false, nil
	}
	if err := w.Sink.PutBatch(st.Accounts()); err != nil {
		return false, err
	}
	w.last = st.Generation
	return true, nil
}
