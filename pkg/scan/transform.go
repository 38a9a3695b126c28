package scan

type mapNode[T, U any] struct {
	up node[T]
	f  func(T) U
}

func (n *mapNode[T, U]) produce(fn func(U) bool) error {
	return n.up.produce(func(v T) bool {
		return fn(n.f(v))
	})
}

func (n *mapNode[T, U]) open() puller[U] {
	return &mapPuller[T, U]{up: n.up.open(), f: n.f}
}

type mapPuller[T, U any] struct {
	up puller[T]
	f  func(T) U
}

func (p *mapPuller[T, U]) next() (U, bool, error) {
	v, ok, err := p.up.next()
	if err != nil || !ok {
		var zero U
		return zero, false, err
	}
	return p.f(v), true, nil
}

func (p *mapPuller[T, U]) close() error {
	return p.up.close()
}

type selectNode[T any] struct {
	up node[T]
	p  func(T) bool
}

func (n *selectNode[T]) produce(fn func(T) bool) error {
	return n.up.produce(func(v T) bool {
		if !n.p(v) {
			return true
		}
		return fn(v)
	})
}

func (n *selectNode[T]) open() puller[T] {
	return &selectPuller[T]{up: n.up.open(), p: n.p}
}

type selectPuller[T any] struct {
	up puller[T]
	p  func(T) bool
}

// next skips upstream values until one satisfies the predicate.
func (p *selectPuller[T]) next() (T, bool, error) {
	for {
		v, ok, err := p.up.next()
		if err != nil || !ok {
			return v, false, err
		}
		if p.p(v) {
			return v, true, nil
		}
	}
}

func (p *selectPuller[T]) close() error {
	return p.up.close()
}
