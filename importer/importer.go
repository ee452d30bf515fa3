package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"power_dashboard/logger"
	"power_dashboard/models"
)

// Importer loads exported tables back from disk
type Importer struct {
	workerCount int
}

// FileJob represents a file to be loaded
type FileJob struct {
	Order    int
	FilePath string
	FileName string
}

// FileResult contains the result of loading one file
type FileResult struct {
	Order    int
	FilePath string
	Rows     []models.Reading
	Duration time.Duration
	Error    error
}

// Result is the combined outcome of a load
type Result struct {
	Rows  []models.Reading
	Files []FileResult
}

// Failed returns the files that could not be loaded
func (r Result) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Error != nil {
			out = append(out, f)
		}
	}
	return out
}

// New creates an importer using up to 8 workers
func New() *Importer {
	workerCount := runtime.NumCPU()
	if workerCount > 8 {
		workerCount = 8
	}
	return &Importer{workerCount: workerCount}
}

// SetWorkerCount sets the number of parallel workers
func (im *Importer) SetWorkerCount(count int) {
	if count > 0 {
		im.workerCount = count
	}
}

var supported = map[string]bool{".csv": true, ".json": true, ".xlsx": true}

// Supported reports whether path has a loadable extension
func Supported(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// collect expands directories (non-recursive, sorted by name) and keeps files
// in the order given
func collect(paths []string) ([]FileJob, error) {
	var jobs []FileJob
	add := func(path string) {
		jobs = append(jobs, FileJob{Order: len(jobs), FilePath: path, FileName: filepath.Base(path)})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		var names []string
		for _, entry := range entries {
			if !entry.IsDir() && Supported(entry.Name()) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(p, name))
		}
	}
	return jobs, nil
}

// Load reads every file in paths in parallel and concatenates their rows in
// path order. Files that fail are reported in Result.Files and skipped.
func (im *Importer) Load(paths ...string) (Result, error) {
	jobs, err := collect(paths)
	if err != nil {
		return Result{}, err
	}
	if len(jobs) == 0 {
		return Result{Rows: []models.Reading{}}, nil
	}

	logger.Debugf("Loading %d file(s) with %d worker(s)\n", len(jobs), im.workerCount)
	files := im.processFilesParallel(jobs)
	sort.Slice(files, func(i, j int) bool { return files[i].Order < files[j].Order })

	res := Result{Rows: []models.Reading{}, Files: files}
	for _, f := range files {
		if f.Error != nil {
			logger.Warnf("Skipping %s: %v\n", f.FilePath, f.Error)
			continue
		}
		res.Rows = append(res.Rows, f.Rows...)
	}
	return res, nil
}

// processFilesParallel loads files using worker goroutines
func (im *Importer) processFilesParallel(files []FileJob) []FileResult {
	jobs := make(chan FileJob, len(files))
	results := make(chan FileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < im.workerCount; i++ {
		wg.Add(1)
		go im.worker(jobs, results, &wg)
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []FileResult
	for result := range results {
		all = append(all, result)
	}
	return all
}

func (im *Importer) worker(jobs <-chan FileJob, results chan<- FileResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		results <- im.loadFile(job)
	}
}

// LoadFile reads a single file by extension
func LoadFile(path string) ([]models.Reading, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return DecodeCSV(file)
	case ".json":
		return DecodeJSON(file)
	case ".xlsx":
		return DecodeXLSX(file)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func (im *Importer) loadFile(job FileJob) FileResult {
	start := time.Now()
	rows, err := LoadFile(job.FilePath)
	res := FileResult{
		Order:    job.Order,
		FilePath: job.FilePath,
		Rows:     rows,
		Duration: time.Since(start),
		Error:    err,
	}
	if err == nil {
		logger.Debugf("Loaded %s: %d rows in %v\n", job.FileName, len(rows), res.Duration)
	}
	return res
}
