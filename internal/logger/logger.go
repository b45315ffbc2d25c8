package logger

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultRetentionSchedule = "@daily"

// LoggerService routes the standard logger into size-rotated files under
// folder_path and archives files older than retention_days on a cron
// schedule.
type LoggerService struct {
	Config            map[string]interface{}
	file              *os.File
	mu                sync.Mutex
	stopCh            chan struct{}
	wg                sync.WaitGroup
	sched             *cron.Cron
	currentLog        string
	maxFileBytes      int64
	retentionDays     int
	retentionSchedule string
	rotateEvery       time.Duration
	folderPath        string
}

func NewLoggerService(config map[string]interface{}) *LoggerService {
	folder, _ := config["folder_path"].(string)
	if folder == "" {
		folder = "./logs"
	}
	schedule, _ := config["retention_schedule"].(string)
	if schedule == "" {
		schedule = defaultRetentionSchedule
	}
	rotateSecs := ToInt(config["rotate_check_seconds"])
	if rotateSecs <= 0 {
		rotateSecs = 10
	}
	return &LoggerService{
		Config:            config,
		stopCh:            make(chan struct{}),
		maxFileBytes:      int64(ToInt(config["max_file_mb"])) * 1024 * 1024,
		retentionDays:     ToInt(config["retention_days"]),
		retentionSchedule: schedule,
		rotateEvery:       time.Duration(rotateSecs) * time.Second,
		folderPath:        folder,
	}
}

// ToInt reads a YAML scalar as an int.
func ToInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(t, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}

func (l *LoggerService) Name() string {
	return "logger"
}

func (l *LoggerService) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.folderPath, 0755); err != nil {
		return err
	}
	logFile := l.nextLogFileName()
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = file
	l.currentLog = logFile
	log.SetOutput(file)
	log.Println("[LoggerService] Started, writing to", logFile)

	l.sched = cron.New()
	if _, err := l.sched.AddFunc(l.retentionSchedule, func() { l.ArchiveOldLogs(time.Now()) }); err != nil {
		file.Close()
		return fmt.Errorf("invalid retention_schedule %q: %w", l.retentionSchedule, err)
	}
	l.sched.Start()

	l.wg.Add(1)
	go l.rotationWorker()
	return nil
}

func (l *LoggerService) Stop() error {
	close(l.stopCh)
	l.wg.Wait()
	if l.sched != nil {
		<-l.sched.Stop().Done()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		log.Println("[LoggerService] Stopping")
		log.SetOutput(os.Stderr)
		return l.file.Close()
	}
	return nil
}

func (l *LoggerService) nextLogFileName() string {
	timestamp := time.Now().Format("20060102_150405.000")
	return filepath.Join(l.folderPath, fmt.Sprintf("app_%s.log", timestamp))
}

func (l *LoggerService) rotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil || l.maxFileBytes <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.maxFileBytes {
		return nil
	}
	newLog := l.nextLogFileName()
	file, err := os.OpenFile(newLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	log.SetOutput(file)
	l.file.Close()
	l.file = file
	l.currentLog = newLog
	log.Println("[LoggerService] Rotated log file to", newLog)
	return nil
}

func (l *LoggerService) rotationWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.rotateEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.rotateIfNeeded(); err != nil {
				log.Printf("[ERROR] log rotation: %v", err)
			}
		}
	}
}

// ArchiveOldLogs zips .log files last modified before now - retention_days
// into logs_<date>.zip and removes them. The active file is never touched.
// It returns the number of archived files.
func (l *LoggerService) ArchiveOldLogs(now time.Time) int {
	if l.retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -l.retentionDays)
	entries, err := os.ReadDir(l.folderPath)
	if err != nil {
		return 0
	}
	l.mu.Lock()
	active := l.currentLog
	l.mu.Unlock()

	var stale []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		full := filepath.Join(l.folderPath, e.Name())
		if full == active {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		stale = append(stale, full)
	}
	if len(stale) == 0 {
		return 0
	}

	zipName := filepath.Join(l.folderPath, fmt.Sprintf("logs_%s.zip", now.Format("20060102_150405")))
	zipFile, err := os.Create(zipName)
	if err != nil {
		return 0
	}
	defer zipFile.Close()
	zw := zip.NewWriter(zipFile)
	defer zw.Close()

	archived := 0
	for _, path := range stale {
		w, err := zw.Create(filepath.Base(path))
		if err != nil {
			continue
		}
		src, err := os.Open(path)
		if err != nil {
			continue
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			continue
		}
		os.Remove(path)
		archived++
	}
	return archived
}

func (l *LoggerService) LogAudit(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.Printf("[AUDIT] %s", msg)
}

var GlobalLogger *LoggerService

func SetGlobalLogger(l *LoggerService) {
	GlobalLogger = l
}

// Audit writes an [AUDIT] line through the global logger when one runs.
func Audit(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if GlobalLogger != nil {
		GlobalLogger.LogAudit(msg)
		return
	}
	log.Printf("[AUDIT] %s", msg)
}

func Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

func Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
