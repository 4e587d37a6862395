package storage

import "context"

// Noop stands in when no storage is reachable: reads miss and writes are dropped.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (Noop) Set(context.Context, string, string) error { return nil }

func (Noop) Delete(context.Context, string) error { return nil }

func (Noop) Update(context.Context, string, UpdateFunc) error { return nil }
