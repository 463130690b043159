package context

type Key string

const (
	Claims Key = "claims"
	Client Key = "client"
	Params Key = "params"
)
