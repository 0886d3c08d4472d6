// Package devengine is a local reference implementation of the remote
// analysis engine. It answers the same endpoints the workbench client calls,
// so the workbench can be developed and tested without the production
// engine. Document conversions are not implemented and always answer with a
// failure envelope.
package devengine
