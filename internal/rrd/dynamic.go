package rrd

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// Provider bundles the archive collaborators one deployment uses. Tables
// hold a single provider and derive per-request data makers from it.
type Provider struct {
	Locator      Locator
	Archive      Archive
	Flusher      Flusher
	DaemonSocket string
	Log          zerolog.Logger
}

// maker builds the per-request DataMaker for already-validated args.
func (p *Provider) maker(args *Args) *DataMaker {
	return &DataMaker{
		Locator:      p.Locator,
		Archive:      p.Archive,
		Flusher:      p.Flusher,
		DaemonSocket: p.DaemonSocket,
		Log:          p.Log,
		Args:         args,
	}
}

// Identify extracts the archive identity (host name, service description)
// of a row object. Host tables identify with the conventional host check
// placeholder as description.
type Identify[T any] func(*T) (host, service string)

// HostCheckDescription is the service slot under which host check metrics
// are archived.
const HostCheckDescription = "_HOST_"

type dynamicColumn[T any] struct {
	name        string
	description string
	offsets     query.ColumnOffsets
	provider    *Provider
	identify    Identify[T]
}

// NewDynamicColumn registers time-series data as an on-demand column:
// requesting "name:RPN:START:END:RESOLUTION[:MAX]" materializes a list
// column with the normalized sample row.
func NewDynamicColumn[T any](name, description string, offsets query.ColumnOffsets, provider *Provider, identify Identify[T]) query.DynamicColumn {
	return dynamicColumn[T]{name, description, offsets, provider, identify}
}

func (d dynamicColumn[T]) Name() string { return d.name }

func (d dynamicColumn[T]) CreateColumn(fullName, arguments string) (query.Column, error) {
	args, err := ParseArgs(arguments, d.name)
	if err != nil {
		return nil, err
	}
	maker := d.provider.maker(args)
	identify := d.identify
	return query.NewListColumn[T](fullName, d.description, d.offsets,
		func(obj *T, _ state.User, tz time.Duration) []query.Value {
			host, service := identify(obj)
			return maker.Build(host, service, tz)
		}), nil
}
