// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"go.uber.org/zap"
)

// zapAdapter satisfies the package-local Logger interfaces of pacing
// and session (a single Debugf(format string, args ...interface{})
// method), keeping those packages free of a direct zap dependency per
// the ambient-stack convention: libraries depend on a tiny interface,
// the CLI edge wires the concrete logger.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (a zapAdapter) Debugf(format string, args ...interface{}) {
	a.s.Debugf(format, args...)
}

// newLogger builds a console logger at info level, or JSON at debug
// level when verbose is set.
func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	if verbose {
		cfg.Encoding = "json"
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
