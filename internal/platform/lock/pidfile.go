package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrAlreadyRunning は別のBotプロセスが起動中の場合のエラー
	ErrAlreadyRunning = errors.New("wiki-keepalive is already running")

	// ErrNotRunning は起動中のBotプロセスが見つからない場合のエラー
	ErrNotRunning = errors.New("wiki-keepalive is not running")
)

// acquireAttempts は解放直後のファイルを掴んだ場合の再試行回数
const acquireAttempts = 3

// PIDFile は起動中のBotを示す制御ファイルです
//
// ファイルは flock で排他ロックされ、プロセスが終了するとロックは自動的に外れる。
type PIDFile struct {
	path string
	file *os.File
}

// Status は制御ファイルから読み取った状態です
type Status struct {
	PID     int
	Running bool
}

// AcquirePIDFile は制御ファイルをロックし、自プロセスのPIDを書き込みます
// 他のプロセスがロックを保持している場合は ErrAlreadyRunning を返す。ロックされていない古いファイルは上書きする
func AcquirePIDFile(path string) (*PIDFile, error) {
	for range acquireAttempts {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open pid file: %w", err)
		}

		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				pid, _ := readPID(path)
				return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
			}
			return nil, fmt.Errorf("failed to lock pid file: %w", err)
		}

		// ロック待ちの間に前の所有者がファイルを削除した場合は作り直す
		if !sameFile(f, path) {
			f.Close()
			continue
		}

		if err := writePID(f); err != nil {
			f.Close()
			return nil, err
		}
		return &PIDFile{path: path, file: f}, nil
	}
	return nil, fmt.Errorf("failed to acquire pid file %s: file keeps being replaced", path)
}

// Path は制御ファイルのパスを返します
func (p *PIDFile) Path() string {
	return p.path
}

// Release は制御ファイルを削除してロックを外します
func (p *PIDFile) Release() error {
	if p.file == nil {
		return nil
	}
	defer func() {
		p.file.Close()
		p.file = nil
	}()

	// 削除してからロックを外す。待っていたプロセスは sameFile で新しいファイルを作り直す
	if sameFile(p.file, p.path) {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove pid file: %w", err)
		}
	}
	return nil
}

// ReadStatus は制御ファイルを読み取り、Botが稼働中かを返します
// 稼働中とはファイルがロックされていることを指す。ファイルが存在しない場合はゼロ値を返す
func ReadStatus(path string) (Status, error) {
	pid, err := readPID(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Status{}, nil
		}
		return Status{}, err
	}

	running, err := locked(path)
	if err != nil {
		return Status{}, err
	}
	return Status{PID: pid, Running: running}, nil
}

// Signal は制御ファイルに記録されたプロセスにシグナルを送ります
func Signal(path string, sig os.Signal) (int, error) {
	status, err := ReadStatus(path)
	if err != nil {
		return 0, err
	}
	if !status.Running || status.PID <= 0 {
		return status.PID, ErrNotRunning
	}

	proc, err := os.FindProcess(status.PID)
	if err != nil {
		return status.PID, fmt.Errorf("failed to find process %d: %w", status.PID, err)
	}
	if err := proc.Signal(sig); err != nil {
		return status.PID, fmt.Errorf("failed to signal process %d: %w", status.PID, err)
	}
	return status.PID, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return f.Sync()
}

// locked は別のファイル記述子からロックを試み、取れなければロック中とみなします
func locked(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB)
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check pid file lock: %w", err)
	}
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false, nil
}

func sameFile(f *os.File, path string) bool {
	opened, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(opened, current)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return pid, nil
}
