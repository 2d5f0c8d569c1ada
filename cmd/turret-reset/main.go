// Command turret-reset soft-reboots an attached microcontroller board over
// its serial console: interrupt whatever is running, then request a soft
// reset, pulsing DTR for boards wired that way.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/hotspot-robotics/turret/serialutil"
)

var logger = golog.NewDevelopmentLogger("turret-reset")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Device string `flag:"device,usage=serial console path (default: first detected)"`
}

const (
	interruptByte = 0x03 // ctrl-c
	softResetByte = 0x04 // ctrl-d
)

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	path := argsParsed.Device
	if path == "" {
		descs, err := serialutil.Search(serialutil.SearchFilter{Type: serialutil.TypeMicroconsole})
		if err != nil {
			return err
		}
		if len(descs) == 0 {
			return errors.New("no serial console found; pass --device")
		}
		path = descs[0].Path
		logger.Infow("using detected console", "path", path)
	}

	port, err := serialutil.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := port.Close(); err != nil {
			logger.Errorw("close console", "error", err)
		}
	}()

	if err := serialutil.SetDTR(port, false); err != nil {
		logger.Debugw("dtr not supported on this console", "error", err)
	} else {
		if !utils.SelectContextOrWait(ctx, 100*time.Millisecond) {
			return ctx.Err()
		}
		if err := serialutil.SetDTR(port, true); err != nil {
			return err
		}
	}

	if _, err := port.Write([]byte{interruptByte}); err != nil {
		return errors.Wrap(err, "cannot interrupt running program")
	}
	if !utils.SelectContextOrWait(ctx, 100*time.Millisecond) {
		return ctx.Err()
	}
	if _, err := port.Write([]byte{softResetByte}); err != nil {
		return errors.Wrap(err, "cannot request soft reset")
	}
	logger.Info("soft reset requested")
	return nil
}
