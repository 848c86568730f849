// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reload

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/hotswap/lib/host"
	"github.com/bureau-foundation/hotswap/lib/pipeline"
	"github.com/bureau-foundation/hotswap/lib/state"
)

// Registrar is handed to a module's registration function.
type Registrar interface {
	// Contribute appends tasks to the named pipeline. Pipelines become
	// visible to the host once the registration function returns.
	Contribute(pipeline string, tasks ...host.Task)

	// States returns the registrar for state types owned by the
	// module. Use state.RegisterSingleton and state.RegisterInstance.
	States() state.Registrar

	// Generation returns the generation being registered.
	Generation() uint64

	// Logger returns a logger tagged with the module and generation.
	Logger() *slog.Logger
}

// RegisterFunc is the signature of a module's registration function.
type RegisterFunc = func(Registrar)

type registrar struct {
	pipelines  *pipeline.Registry
	states     state.Registrar
	generation uint64
	logger     *slog.Logger
}

func (r *registrar) Contribute(name string, tasks ...host.Task) {
	r.pipelines.Contribute(name, tasks...)
}

func (r *registrar) States() state.Registrar { return r.states }

func (r *registrar) Generation() uint64 { return r.generation }

func (r *registrar) Logger() *slog.Logger { return r.logger }

// callRegister runs register, converting a panic into an error.
func callRegister(register RegisterFunc, r Registrar) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("registration panicked: %v", recovered)
		}
	}()
	register(r)
	return nil
}
