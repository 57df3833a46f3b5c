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

// Package pipererr defines the error sentinels shared by the transport,
// pacing, and session packages. Callers classify failures with errors.Is
// rather than type-switching on a different error type per layer.
package pipererr

import "errors"

var (
	// ErrInvalidArgument is returned by parameter validation in every
	// operation. It indicates a caller bug.
	ErrInvalidArgument = errors.New("piper: invalid argument")

	// ErrInvalidLayout is returned by backer.Open on a malformed file.
	ErrInvalidLayout = errors.New("piper: invalid backing file layout")

	// ErrConcurrentSession is returned by Transport.Begin when another
	// session is already active.
	ErrConcurrentSession = errors.New("piper: concurrent session already active")

	// ErrStaleSession is returned by Input/Flush/Finish when the given
	// session id does not match the currently active session.
	ErrStaleSession = errors.New("piper: session id does not match the active session")

	// ErrInvalidPosition is returned by View when the requested position
	// falls outside the readable window. Input reports a position outside
	// the writable window as ErrInvalidArgument instead.
	ErrInvalidPosition = errors.New("piper: position outside the visible window")

	// ErrTimer wraps a timerfd syscall failure.
	ErrTimer = errors.New("piper: timer failure")

	// ErrEndOfStream signals a clean end of input (stdin EOF). A failed
	// write on the output side (e.g. a closed stdout pipe) is not reported
	// with this sentinel.
	ErrEndOfStream = errors.New("piper: end of stream")

	// ErrDataLoss is reported when a consumer's cursor fell below the
	// readable window's lower bound; the caller should resync to Until().
	ErrDataLoss = errors.New("piper: consumer fell behind and data was discarded")

	// ErrQuit signals a clean shutdown requested by a signal handler.
	ErrQuit = errors.New("piper: shutdown requested")
)
