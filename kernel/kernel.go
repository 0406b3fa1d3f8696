package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/shlex"
	kernelHandler "github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/handlers"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/models"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/programs"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/threads"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/userprog"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/utils/config"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/utils/log"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/utils/web/server"
	"golang.org/x/sync/errgroup"
)

const ConfigPath = "kernel/configs/kernel.json"

func main() {
	configPath := ConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	config.InitConfig(configPath, &models.KernelConfig)
	log.InitLogger(models.KernelConfig.LogPath, models.KernelConfig.LogLevel)

	cfg := models.KernelConfig
	slog.Debug(fmt.Sprintf("Port Kernel: %d", cfg.PortKernel))

	if cfg.SelfTest {
		if err := selfTest(cfg); err != nil {
			slog.Error(fmt.Sprintf("Falló la prueba de hilos: %v", err))
			os.Exit(1)
		}
	}

	if err := run(cfg); err != nil {
		slog.Error(fmt.Sprintf("El kernel terminó con error: %v", err))
		os.Exit(1)
	}
}

// run arma la máquina, instala los programas y corre el programa de arranque hasta que la
// máquina se detenga. Una señal de interrupción la detiene desde afuera.
func run(cfg *models.Config) error {
	argv, err := shlex.Split(cfg.ShellProgram)
	if err != nil {
		return fmt.Errorf("shell_program inválido: %w", err)
	}
	if len(argv) == 0 {
		return errors.New("shell_program vacío")
	}

	fs, err := newFileSystem(cfg)
	if err != nil {
		return err
	}

	m := machine.New(cfg.Machine, fs, machine.NewConsole(os.Stdin, os.Stdout))
	if err := programs.Install(m, programs.Builtin()); err != nil {
		return err
	}

	policy, err := threads.NewPolicy(cfg.Scheduler, m.Rand())
	if err != nil {
		return err
	}
	uk := userprog.NewUserKernel(m, policy, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	done, finished := context.WithCancel(gctx)

	g.Go(func() error {
		defer finished()
		slog.Info(fmt.Sprintf("## Iniciando %s con %s", cfg.ShellProgram, policy.Name()))
		return uk.Run(argv[0], argv[1:])
	})

	g.Go(func() error {
		<-done.Done()
		if ctx.Err() != nil {
			slog.Info("## Señal recibida, deteniendo la máquina")
		}
		m.Shutdown()
		return nil
	})

	if cfg.PortKernel > 0 {
		g.Go(func() error {
			return server.InitServer(done, cfg.PortKernel, kernelHandler.Routes(m))
		})
	}

	return g.Wait()
}

func newFileSystem(cfg *models.Config) (machine.FileSystem, error) {
	switch cfg.FileSystem {
	case models.FileSystemFat:
		return machine.NewFatFileSystem()
	case models.FileSystemStub:
		return machine.NewStubFileSystem(cfg.FileSystemRoot)
	}
	return nil, fmt.Errorf("file_system desconocido: %s", cfg.FileSystem)
}

// selfTest corre en una máquina aparte el Communicator y el problema del barco.
func selfTest(cfg *models.Config) error {
	m := machine.New(cfg.Machine, nil, nil)
	policy, err := threads.NewPolicy(cfg.Scheduler, m.Rand())
	if err != nil {
		return err
	}
	k := threads.NewKernel(m, policy)

	return k.Run(func() {
		comm := threads.NewCommunicator(k)
		listener := k.NewThread("listener", func() {
			for i := 0; i < 3; i++ {
				slog.Info(fmt.Sprintf("## Palabra recibida: %d", comm.Listen()))
			}
		})
		listener.Fork()
		for i := 0; i < 3; i++ {
			comm.Speak(i)
		}
		listener.Join()

		boat := threads.NewBoat(k)
		if err := boat.Begin(cfg.BoatAdults, cfg.BoatChildren, threads.LogGrader{}); err != nil {
			m.Fail(err)
		}
	})
}
