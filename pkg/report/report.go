// Package report renders the plain-text summary written next to a job's
// working directory when the job reaches a terminal status. The file is
// meant for humans pulling artifacts off the mirror host, so it leans on
// fixed-width sections rather than structured output.
package report

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Input carries everything the report needs. Callers fill it from the job
// snapshot; the filesystem details are gathered here at render time.
type Input struct {
	Component string
	Version   string
	Name      string
	Status    string
	PID       int
	ExitCode  int

	StartTime time.Time
	EndTime   time.Time

	HomeDir          string
	FinalRegistry    string
	RegistryAuthFile string
	Filter           string

	// LogPath is the log the monitor scraped. For case jobs this is the
	// tool's own download log under the working directory.
	LogPath string
}

// Path returns where the report for name lives under home.
func Path(home, name string) string {
	return filepath.Join(home, name+"-summary-report.txt")
}

// Write renders the report and writes it to Path(in.HomeDir, in.Name),
// creating the home directory if needed. It returns the written path.
func Write(in Input) (string, error) {
	content := render(in, time.Now())
	out := Path(in.HomeDir, in.Name)
	if err := os.MkdirAll(in.HomeDir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return out, nil
}

type dirStats struct {
	exists    bool
	sizeBytes int64
	files     int
	dirs      int
	images    int
	mappings  int
	logs      int
}

func render(in Input, now time.Time) string {
	workDir := filepath.Join(in.HomeDir, in.Name)
	stats := collectDirStats(workDir)

	duration := "N/A"
	transferRate := "N/A"
	endTime := "N/A"
	if !in.EndTime.IsZero() {
		endTime = in.EndTime.Format(time.RFC3339)
		d := in.EndTime.Sub(in.StartTime)
		if d > 0 {
			duration = d.Truncate(time.Second).String()
			if stats.sizeBytes > 0 {
				mbps := float64(stats.sizeBytes) / (1024 * 1024) / d.Seconds()
				transferRate = fmt.Sprintf("%.2f MB/s", mbps)
			}
		}
	}

	logExists, logSize := fileInfo(in.LogPath)
	mappingFile := filepath.Join(workDir, "mapping.txt")
	mappingExists, _ := fileInfo(mappingFile)
	configFile := filepath.Join(workDir, ".image-config.json")
	configExists, _ := fileInfo(configFile)

	hostname := "N/A"
	if h, err := os.Hostname(); err == nil {
		hostname = h
	}

	var b strings.Builder
	bar := strings.Repeat("=", 80)

	fmt.Fprintf(&b, "\n%s\n", bar)
	fmt.Fprintf(&b, "                    MIRROR JOB SUMMARY REPORT\n")
	fmt.Fprintf(&b, "%s\n\n", bar)

	fmt.Fprintf(&b, "DOWNLOAD INFORMATION\n--------------------\n")
	fmt.Fprintf(&b, "Component:              %s\n", in.Component)
	fmt.Fprintf(&b, "Version:                %s\n", in.Version)
	fmt.Fprintf(&b, "Directory Name:         %s\n", in.Name)
	fmt.Fprintf(&b, "Status:                 %s\n", strings.ToUpper(in.Status))
	fmt.Fprintf(&b, "Process ID:             %d\n", in.PID)
	fmt.Fprintf(&b, "Exit Code:              %d\n\n", in.ExitCode)

	fmt.Fprintf(&b, "TIMING DETAILS\n--------------\n")
	fmt.Fprintf(&b, "Start Time:             %s\n", in.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "End Time:               %s\n", endTime)
	fmt.Fprintf(&b, "Duration:               %s\n", duration)
	fmt.Fprintf(&b, "Transfer Rate:          %s\n\n", transferRate)

	fmt.Fprintf(&b, "CONFIGURATION\n-------------\n")
	fmt.Fprintf(&b, "Home Directory:         %s\n", in.HomeDir)
	fmt.Fprintf(&b, "Download Directory:     %s\n", workDir)
	fmt.Fprintf(&b, "Target Registry:        %s\n", orNA(in.FinalRegistry))
	fmt.Fprintf(&b, "Registry Auth File:     %s\n", orNA(in.RegistryAuthFile))
	fmt.Fprintf(&b, "Filter Pattern:         %s\n\n", orNA(in.Filter))

	fmt.Fprintf(&b, "FILE SYSTEM DETAILS\n-------------------\n")
	fmt.Fprintf(&b, "Directory Exists:       %s\n", yesNo(stats.exists))
	fmt.Fprintf(&b, "Directory Size:         %s\n", humanSize(stats.sizeBytes))
	fmt.Fprintf(&b, "Total Files:            %d\n", stats.files)
	fmt.Fprintf(&b, "Total Directories:      %d\n", stats.dirs)
	fmt.Fprintf(&b, "Image Files (.tar):     %d\n", stats.images)
	fmt.Fprintf(&b, "Mapping Files:          %d\n", stats.mappings)
	fmt.Fprintf(&b, "Log Files:              %d\n\n", stats.logs)

	fmt.Fprintf(&b, "KEY FILES\n---------\n")
	fmt.Fprintf(&b, "Download Log:           %s\n", in.LogPath)
	fmt.Fprintf(&b, "  - Exists:             %s\n", yesNo(logExists))
	fmt.Fprintf(&b, "  - Size:               %s\n\n", logSize)
	fmt.Fprintf(&b, "Mapping File:           %s\n", mappingFile)
	fmt.Fprintf(&b, "  - Exists:             %s\n", yesNo(mappingExists))
	fmt.Fprintf(&b, "  - Images Listed:      %d\n\n", countMappingImages(mappingFile))
	fmt.Fprintf(&b, "Config File:            %s\n", configFile)
	fmt.Fprintf(&b, "  - Exists:             %s\n\n", yesNo(configExists))

	fmt.Fprintf(&b, "SYSTEM INFORMATION\n------------------\n")
	fmt.Fprintf(&b, "Hostname:               %s\n", hostname)
	fmt.Fprintf(&b, "Disk Space (%s):\n  %s\n", in.HomeDir, diskSpace(in.HomeDir))

	if excerpt := errorExcerpt(in.Status, in.LogPath); excerpt != "" {
		fmt.Fprintf(&b, "\nERROR DETAILS\n-------------\n")
		fmt.Fprintf(&b, "Recent errors from log file:\n%s\n", excerpt)
	}

	fmt.Fprintf(&b, "\n%s\n", bar)
	fmt.Fprintf(&b, "Report Generated:       %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n", bar)

	return b.String()
}

func collectDirStats(dir string) dirStats {
	var s dirStats
	if _, err := os.Stat(dir); err != nil {
		return s
	}
	s.exists = true
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if d.IsDir() {
			s.dirs++
			return nil
		}
		s.files++
		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".tar"), strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
			s.images++
		case strings.Contains(strings.ToLower(name), "mapping"):
			s.mappings++
		case strings.HasSuffix(name, ".log"):
			s.logs++
		}
		if info, err := d.Info(); err == nil {
			s.sizeBytes += info.Size()
		}
		return nil
	})
	return s
}

func fileInfo(path string) (exists bool, size string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, "N/A"
	}
	return true, humanSize(info.Size())
}

func humanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
	}
}

// countMappingImages counts non-blank, non-comment lines, which is how the
// mirror tools list one image per line.
func countMappingImages(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			count++
		}
	}
	return count
}

func diskSpace(dir string) string {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return "N/A"
	}
	total := int64(st.Blocks) * int64(st.Bsize)
	avail := int64(st.Bavail) * int64(st.Bsize)
	used := total - int64(st.Bfree)*int64(st.Bsize)
	pct := "N/A"
	if total > 0 {
		pct = fmt.Sprintf("%d%%", used*100/total)
	}
	return fmt.Sprintf("Total: %s, Used: %s, Available: %s, Use%%: %s",
		humanSize(total), humanSize(used), humanSize(avail), pct)
}

// errorExcerpt pulls error-looking lines from the tail of the log for
// failed jobs: the last ten lines are scanned, at most five are kept.
func errorExcerpt(status, logPath string) string {
	if status != "failed" {
		return ""
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	var hits []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "fail") {
			hits = append(hits, strings.TrimSpace(line))
		}
		if len(hits) == 5 {
			break
		}
	}
	return strings.Join(hits, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
