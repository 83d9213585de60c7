// Package process starts, stops and watches the game server executable.
package process

import (
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/molt/scummgr/internal/domain"
)

// Supervisor manages one game server process. It can launch the executable
// itself or attach to one started outside the manager.
type Supervisor struct {
	mu         sync.Mutex
	installDir string
	executable string
	args       []string
	cmd        *exec.Cmd
	proc       *process.Process
	startedAt  time.Time
}

// NewSupervisor creates a supervisor for the executable at
// installDir/executable, launched with args.
func NewSupervisor(installDir, executable string, args []string) *Supervisor {
	return &Supervisor{
		installDir: installDir,
		executable: executable,
		args:       args,
	}
}

// Attach looks for an already running process whose name matches the
// executable and adopts it. Returns false if none was found.
func (s *Supervisor) Attach() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		if running, _ := s.proc.IsRunning(); running {
			return true, nil
		}
		s.proc = nil
	}

	procs, err := process.Processes()
	if err != nil {
		return false, fmt.Errorf("listing processes: %w", err)
	}

	want := strings.ToLower(s.executable)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.ToLower(name) == want {
			s.proc = p
			if created, err := p.CreateTime(); err == nil {
				s.startedAt = time.UnixMilli(created)
			}
			log.Printf("attached to running server process pid=%d", p.Pid)
			return true, nil
		}
	}
	return false, nil
}

// Start launches the executable. Fails if a process is already running.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		if running, _ := s.proc.IsRunning(); running {
			return fmt.Errorf("server already running (pid %d)", s.proc.Pid)
		}
		s.proc = nil
	}

	path := filepath.Join(s.installDir, s.executable)
	cmd := exec.Command(path, s.args...)
	cmd.Dir = s.installDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		return fmt.Errorf("watching started process: %w", err)
	}

	s.cmd = cmd
	s.proc = proc
	s.startedAt = time.Now()
	log.Printf("started server process pid=%d", cmd.Process.Pid)

	// Reap the child when it exits so it never lingers as a zombie
	go func() {
		_ = cmd.Wait()
	}()

	return nil
}

// Stop terminates the process, politely first, then by force after the
// grace period.
func (s *Supervisor) Stop(grace time.Duration) error {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()

	if proc == nil {
		return fmt.Errorf("server not running")
	}
	running, err := proc.IsRunning()
	if err != nil || !running {
		s.clear()
		return fmt.Errorf("server not running")
	}

	if err := proc.Terminate(); err != nil {
		return fmt.Errorf("terminating server: %w", err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if running, _ := proc.IsRunning(); !running {
			s.clear()
			log.Printf("server process pid=%d stopped", proc.Pid)
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}

	log.Printf("server process pid=%d ignored terminate, killing", proc.Pid)
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("killing server: %w", err)
	}
	s.clear()
	return nil
}

// Restart stops the process if running, then starts it again
func (s *Supervisor) Restart(grace time.Duration) error {
	if s.Running() {
		if err := s.Stop(grace); err != nil {
			return err
		}
	}
	return s.Start()
}

// Running reports whether the supervised process is alive
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()

	if proc == nil {
		return false
	}
	running, err := proc.IsRunning()
	return err == nil && running
}

// Stats samples resource usage of the supervised process. Returns a stats
// struct with Running=false when no process is attached.
func (s *Supervisor) Stats() *domain.ProcessStats {
	s.mu.Lock()
	proc := s.proc
	startedAt := s.startedAt
	s.mu.Unlock()

	stats := &domain.ProcessStats{}
	if proc == nil {
		return stats
	}
	running, err := proc.IsRunning()
	if err != nil || !running {
		return stats
	}

	stats.PID = proc.Pid
	stats.Running = true
	stats.StartedAt = startedAt
	if !startedAt.IsZero() {
		stats.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.MemoryRSS = mem.RSS
	}
	return stats
}

func (s *Supervisor) clear() {
	s.mu.Lock()
	s.proc = nil
	s.cmd = nil
	s.mu.Unlock()
}
