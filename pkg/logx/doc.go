// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so the rest of the codebase can log through a stable API while
// sinks (console, file) and levels are swapped at runtime via Service.Apply.
package logx
