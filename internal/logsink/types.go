// Package logsink ships application log entries to the remote evaluation
// log service. Delivery is best-effort: transport failures are retried a
// bounded number of times and then dropped, never surfaced to the caller.
package logsink

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrInvalidStack   = errors.New("invalid stack")
	ErrInvalidLevel   = errors.New("invalid level")
	ErrInvalidPackage = errors.New("invalid package")

	// ErrPackageNotAllowed is returned when a package belongs to the other stack.
	ErrPackageNotAllowed = errors.New("package not allowed for stack")
)

type Stack string

const (
	StackBackend  Stack = "backend"
	StackFrontend Stack = "frontend"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

var levels = map[Level]struct{}{
	LevelDebug: {},
	LevelInfo:  {},
	LevelWarn:  {},
	LevelError: {},
	LevelFatal: {},
}

// LevelFromSlog maps a slog level onto the remote levels. Anything above
// error is treated as fatal.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	case l == slog.LevelError:
		return LevelError
	default:
		return LevelFatal
	}
}

type Package string

const (
	PackageCache      Package = "cache"
	PackageController Package = "controller"
	PackageCronJob    Package = "cron_job"
	PackageDB         Package = "db"
	PackageDomain     Package = "domain"
	PackageHandler    Package = "handler"
	PackageRepository Package = "repository"
	PackageRoute      Package = "route"
	PackageService    Package = "service"

	PackageAPI       Package = "api"
	PackageComponent Package = "component"
	PackageHook      Package = "hook"
	PackagePage      Package = "page"
	PackageState     Package = "state"
	PackageStyle     Package = "style"

	PackageAuth       Package = "auth"
	PackageConfig     Package = "config"
	PackageMiddleware Package = "middleware"
	PackageUtils      Package = "utils"
)

// packageStacks lists the stacks each package may be used from.
var packageStacks = map[Package][]Stack{
	PackageCache:      {StackBackend},
	PackageController: {StackBackend},
	PackageCronJob:    {StackBackend},
	PackageDB:         {StackBackend},
	PackageDomain:     {StackBackend},
	PackageHandler:    {StackBackend},
	PackageRepository: {StackBackend},
	PackageRoute:      {StackBackend},
	PackageService:    {StackBackend},

	PackageAPI:       {StackFrontend},
	PackageComponent: {StackFrontend},
	PackageHook:      {StackFrontend},
	PackagePage:      {StackFrontend},
	PackageState:     {StackFrontend},
	PackageStyle:     {StackFrontend},

	PackageAuth:       {StackBackend, StackFrontend},
	PackageConfig:     {StackBackend, StackFrontend},
	PackageMiddleware: {StackBackend, StackFrontend},
	PackageUtils:      {StackBackend, StackFrontend},
}

// Entry is the body accepted by the log service.
type Entry struct {
	Stack   Stack   `json:"stack"`
	Level   Level   `json:"level"`
	Package Package `json:"package"`
	Message string  `json:"message"`
}

func (e Entry) Validate() error {
	const op = "logsink.Entry.Validate"

	if e.Stack != StackBackend && e.Stack != StackFrontend {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidStack, e.Stack)
	}
	if _, ok := levels[e.Level]; !ok {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidLevel, e.Level)
	}

	stacks, ok := packageStacks[e.Package]
	if !ok {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidPackage, e.Package)
	}
	for _, s := range stacks {
		if s == e.Stack {
			return nil
		}
	}

	return fmt.Errorf("%s: %w: %s/%s", op, ErrPackageNotAllowed, e.Stack, e.Package)
}
