package commandstructure

import (
	"fmt"
	"image"
	"log/slog"
	"time"
)

// CommandInvoker executes a sequence of commands on a decoded image
type CommandInvoker struct {
	commands []Command
}

// NewCommandInvoker creates a new command invoker
func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{
		commands: commands,
	}
}

// NewCommandInvokerFromConfig builds every configured command through the
// registry up front, so a bad configuration fails at startup.
func NewCommandInvokerFromConfig(registry *CommandRegistry, configs []CommandConfig) (*CommandInvoker, error) {
	commands := make([]Command, 0, len(configs))
	for i, config := range configs {
		command, err := registry.Create(config.Name, config.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create command at index %d (%s): %w", i, config.Name, err)
		}
		commands = append(commands, command)
	}
	return NewCommandInvoker(commands), nil
}

// Names returns the names of the commands in execution order
func (i *CommandInvoker) Names() []string {
	names := make([]string, len(i.commands))
	for idx, command := range i.commands {
		names[idx] = command.Name()
	}
	return names
}

// Execute applies all commands in sequence to the image
func (i *CommandInvoker) Execute(img image.Image) (image.Image, error) {
	start := time.Now()

	if len(i.commands) == 0 {
		slog.Debug("no commands to execute, returning original image")
		return img, nil
	}

	current := img

	for idx, command := range i.commands {
		commandStart := time.Now()
		bounds := current.Bounds()

		processed, err := command.Execute(current)
		if err != nil {
			slog.Error("command execution failed",
				"index", idx,
				"command_name", command.Name(),
				"error", err,
				"input_width", bounds.Dx(),
				"input_height", bounds.Dy())
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}
		if processed == nil {
			return nil, fmt.Errorf("command %s (index %d) returned no image", command.Name(), idx)
		}

		slog.Debug("command completed",
			"index", idx,
			"command_name", command.Name(),
			"duration_ms", time.Since(commandStart).Milliseconds(),
			"input_width", bounds.Dx(),
			"input_height", bounds.Dy(),
			"output_width", processed.Bounds().Dx(),
			"output_height", processed.Bounds().Dy())

		current = processed
	}

	slog.Debug("image processing pipeline completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
		"command_count", len(i.commands))

	return current, nil
}
