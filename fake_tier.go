package lstorage

// fakeTier is a canned queryable for tests.
type fakeTier struct {
	val   string
	found bool

	err error
}

func (f *fakeTier) get(_ string) (string, bool, error) {
	return f.val, f.found, f.err
}
