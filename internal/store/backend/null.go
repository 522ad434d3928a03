package backend

// Null is a no-op backend. Writes are discarded and reads always miss.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (Null) GetItem(string) (string, bool) { return "", false }

func (Null) SetItem(string, string) error { return nil }

func (Null) RemoveItem(string) {}

func (Null) Len() int { return 0 }

func (Null) KeyAt(int) (string, bool) { return "", false }
