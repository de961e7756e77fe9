package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/ModLibrary/pkg/logger"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/notes"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/query"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/render"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/storage"
)

// Global flags
var (
	dbPath     string
	sampleRate int
)

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
	nameColor = color.New(color.FgCyan, color.Bold)
)

func init() {
	// .env must be loaded before the flag defaults read the environment.
	_ = godotenv.Load()

	flag.StringVar(&dbPath, "db", getEnvOrDefault("MODLIB_DB_PATH", modlibrary.DefaultDBPath()), "Path to the library database, or a postgres:// DSN")
	flag.IntVar(&sampleRate, "rate", getEnvIntOrDefault("MODLIB_SAMPLE_RATE", 22050), "Sample rate modules are rendered at for fingerprinting")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func createService() (modlibrary.Service, error) {
	return modlibrary.NewService(
		modlibrary.WithDBPath(dbPath),
		modlibrary.WithSampleRate(sampleRate),
	)
}

func mustService() modlibrary.Service {
	svc, err := createService()
	if err != nil {
		fail("Failed to open library: %v", err)
	}
	return svc
}

func fail(format string, args ...any) {
	errColor.Fprintf(os.Stderr, format+"\n", args...)
	logger.GetLogger().Errorf(format, args...)
	os.Exit(1)
}

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command, args := flag.Arg(0), flag.Args()[1:]
	logger.GetLogger().Debugf("Executing command: %s", command)

	switch command {
	case "add":
		handleAdd(ctx, args)
	case "scan":
		handleScan(ctx, args)
	case "maintain":
		handleMaintain(ctx)
	case "search":
		handleSearch(ctx, args)
	case "info":
		handleInfo(ctx, args)
	case "comment":
		handleComment(ctx, args)
	case "fingerprint":
		handleFingerprint(ctx, args)
	case "remove":
		handleRemove(ctx, args)
	case "export":
		handleExport(ctx, args)
	case "render":
		handleRender(ctx, args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAdd(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: modlib add <file>...")
		os.Exit(1)
	}
	svc := mustService()
	defer svc.Close()

	failed := 0
	for _, path := range args {
		res, err := svc.AddModule(ctx, path)
		switch {
		case res.IsError():
			failed++
			errColor.Printf("%-10s", res)
			fmt.Printf(" %s: %v\n", path, err)
		case res == modlibrary.NoChange:
			warnColor.Printf("%-10s", res)
			fmt.Printf(" %s\n", path)
		default:
			okColor.Printf("%-10s", res)
			fmt.Printf(" %s\n", path)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// newBar returns a progress bar whose total is filled in by the first
// progress report.
func newBar(p *mpb.Progress, name string) *mpb.Bar {
	return p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(name),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
}

func handleScan(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: modlib scan <folder>")
		os.Exit(1)
	}
	svc := mustService()
	defer svc.Close()

	p := mpb.New(mpb.WithWidth(64))
	bar := newBar(p, "Scanning: ")
	report, err := svc.ScanFolder(ctx, args[0], func(pr modlibrary.Progress) {
		bar.SetTotal(int64(pr.Total), false)
		bar.Increment()
	})
	bar.SetTotal(-1, true)
	p.Wait()
	if err != nil {
		fail("Scan failed: %v", err)
	}

	if report.Cancelled {
		warnColor.Println("Scan cancelled.")
	}
	okColor.Printf("%d files added, %d files updated", report.Added, report.Updated)
	fmt.Printf(" (%d unchanged, %d not modules)\n", report.Unchanged, report.Failed)
}

func handleMaintain(ctx context.Context) {
	svc := mustService()
	defer svc.Close()

	p := mpb.New(mpb.WithWidth(64))
	bar := newBar(p, "Maintaining: ")
	report, err := svc.Maintain(ctx, func(pr modlibrary.Progress) {
		bar.SetTotal(int64(pr.Total), false)
		bar.Increment()
	})
	bar.SetTotal(-1, true)
	p.Wait()
	if err != nil {
		fail("Maintenance failed: %v", err)
	}

	if report.Cancelled {
		warnColor.Printf("Maintenance cancelled after %d of %d files.\n", report.Scanned, report.Total)
	}
	okColor.Printf("%d files updated, %d files removed.\n", report.Updated, report.Removed)
}

func handleSearch(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	opts := bindSearchFlags(fs)
	limit := fs.Int("limit", 0, "Show at most this many results (0 = all)")
	fs.Parse(args)

	crit, err := opts.criteria()
	if err != nil {
		fail("Invalid search: %v", err)
	}
	svc := mustService()
	defer svc.Close()

	rs, err := svc.Search(ctx, crit)
	if err != nil {
		fail("Search failed: %v", err)
	}
	results, err := opts.sorted(rs)
	if err != nil {
		fail("%v", err)
	}

	if len(results) == 0 {
		fmt.Println("No modules found.")
		return
	}
	if single, ok := rs.Single(crit); ok {
		showRecord(ctx, svc, single.Path)
		return
	}

	shown := results
	if *limit > 0 && len(shown) > *limit {
		shown = shown[:*limit]
	}
	for _, r := range shown {
		if rs.Scored {
			fmt.Printf("%3d%%  ", r.Match)
		}
		nameColor.Printf("%-40s", r.DisplayTitle())
		fmt.Printf(" %10s  %16s  %s\n", r.SizeString(), r.DateString(), r.Path)
	}
	if len(shown) < len(results) {
		fmt.Printf("... and %d more\n", len(results)-len(shown))
	}
	fmt.Printf("%d modules found.\n", len(results))
}

// formatDuration prints d as m:ss.t.
func formatDuration(d time.Duration) string {
	tenths := d.Milliseconds() / 100
	return fmt.Sprintf("%d:%02d.%d", tenths/600, (tenths/10)%60, tenths%10)
}

func showRecord(ctx context.Context, svc modlibrary.Service, path string) {
	rec, err := svc.GetModule(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		fail("%s is not in the library", path)
	}
	if err != nil {
		fail("Lookup failed: %v", err)
	}

	nameColor.Println(rec.DisplayTitle())
	fmt.Printf("   File:      %s\n", rec.Path)
	fmt.Printf("   Size:      %s (%s)\n", humanize.IBytes(uint64(rec.FileSize)), query.FormatSize(rec.FileSize))
	fmt.Printf("   Modified:  %s (%s)\n", rec.FileDate.Local().Format("2006-01-02 15:04"), humanize.Time(rec.FileDate))
	if !rec.EditDate.IsZero() {
		fmt.Printf("   Released:  %s\n", rec.EditDate.Format("2006-01-02"))
	}
	if rec.Artist != "" {
		fmt.Printf("   Artist:    %s\n", rec.Artist)
	}
	fmt.Printf("   Format:    %s\n", rec.Format)
	fmt.Printf("   Duration:  %s\n", formatDuration(rec.Duration))
	fmt.Printf("   %d channels, %d patterns, %d orders, %d sub-songs, %d samples, %d instruments\n",
		rec.Channels, rec.Patterns, rec.Orders, rec.SubSongs, rec.Samples, rec.Instruments)
	if len(rec.NoteData) > 0 {
		steps := rec.NoteData[:min(len(rec.NoteData), 32)]
		fmt.Printf("   Melody:    %s\n", notes.Format(steps))
	}
	printBlock("Samples", rec.SampleText)
	printBlock("Instruments", rec.InstrumentText)
	printBlock("Comments", rec.Comments)
	printBlock("Personal comments", rec.PersonalComments)
}

func printBlock(title, text string) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, line := range strings.Split(text, "\n") {
		fmt.Printf("   %s\n", line)
	}
}

func handleInfo(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: modlib info <file>")
		os.Exit(1)
	}
	svc := mustService()
	defer svc.Close()
	showRecord(ctx, svc, args[0])
}

func handleComment(ctx context.Context, args []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Println("Usage: modlib comment <file> [--artist <name>] [--comment <text>]")
		os.Exit(1)
	}
	path := args[0]
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	artist := fs.String("artist", "", "Artist name")
	comment := fs.String("comment", "", "Personal comment")
	fs.Parse(args[1:])

	svc := mustService()
	defer svc.Close()

	rec, err := svc.GetModule(ctx, path)
	if err != nil {
		fail("Lookup failed: %v", err)
	}
	newArtist, newComment := rec.Artist, rec.PersonalComments
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "artist":
			newArtist = *artist
		case "comment":
			newComment = *comment
		}
	})
	if err := svc.UpdateCustom(ctx, path, newArtist, newComment); err != nil {
		fail("Update failed: %v", err)
	}
	okColor.Printf("Updated %s\n", rec.Path)
}

func handleFingerprint(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: modlib fingerprint <file>")
		os.Exit(1)
	}
	svc := mustService()
	defer svc.Close()

	fp, err := svc.GetFingerprint(ctx, args[0])
	if err != nil {
		fail("Lookup failed: %v", err)
	}
	fmt.Println(fp)
}

func handleRemove(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: modlib remove <file>...")
		os.Exit(1)
	}
	svc := mustService()
	defer svc.Close()

	for _, path := range args {
		removed, err := svc.RemoveModule(ctx, path)
		switch {
		case err != nil:
			errColor.Printf("Failed to remove %s: %v\n", path, err)
		case removed:
			okColor.Printf("Removed %s\n", path)
		default:
			warnColor.Printf("%s is not in the library\n", path)
		}
	}
}

func handleExport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	opts := bindSearchFlags(fs)
	out := fs.String("o", "", "Output playlist file (default: stdout)")
	fs.Parse(args)

	crit, err := opts.criteria()
	if err != nil {
		fail("Invalid search: %v", err)
	}
	svc := mustService()
	defer svc.Close()

	rs, err := svc.Search(ctx, crit)
	if err == nil && rs.Len() == 0 && !crit.ShowAll {
		crit = query.Criteria{ShowAll: true, Fingerprint: crit.Fingerprint}
		rs, err = svc.Search(ctx, crit)
	}
	if err != nil {
		fail("Search failed: %v", err)
	}
	results, err := opts.sorted(rs)
	if err != nil {
		fail("%v", err)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fail("Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := svc.ExportPlaylist(w, results); err != nil {
		fail("Export failed: %v", err)
	}
	if *out != "" {
		okColor.Printf("Wrote %d entries to %s\n", len(results), *out)
	}
}

func handleRender(ctx context.Context, args []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Println("Usage: modlib render <file> [-o out.wav] [-rate 44100]")
		os.Exit(1)
	}
	path := args[0]
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	out := fs.String("o", "", "Output WAV file (default: <file>.wav)")
	rate := fs.Int("rate", 44100, "Output sample rate")
	fs.Parse(args[1:])
	if *out == "" {
		*out = path + ".wav"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fail("Failed to read %s: %v", path, err)
	}
	mod, err := decoder.NewRegistry().Decode(data)
	if err != nil {
		fail("Failed to decode %s: %v", path, err)
	}
	f, err := os.Create(*out)
	if err != nil {
		fail("Failed to create %s: %v", *out, err)
	}
	defer f.Close()

	preview := render.StartPreview(f, mod, *rate)
	select {
	case <-ctx.Done():
		preview.Stop()
	case <-preview.Done():
	}
	n, err := preview.Wait()
	if err != nil {
		fail("Render failed: %v", err)
	}
	okColor.Printf("Wrote %s of audio to %s\n", formatDuration(time.Duration(n)*time.Second/time.Duration(*rate)), *out)
}

func printUsage() {
	fmt.Println("modlib - tracker module library")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Library database or postgres:// DSN (env: MODLIB_DB_PATH)")
	fmt.Println("  --rate <hz>        Fingerprint render rate (env: MODLIB_SAMPLE_RATE, default: 22050)")
	fmt.Println("\nUsage:")
	fmt.Println("  modlib [global-options] add <file>...")
	fmt.Println("  modlib [global-options] scan <folder>")
	fmt.Println("  modlib [global-options] maintain")
	fmt.Println("  modlib [global-options] search [search-options]")
	fmt.Println("  modlib [global-options] info <file>")
	fmt.Println("  modlib [global-options] comment <file> [--artist <name>] [--comment <text>]")
	fmt.Println("  modlib [global-options] fingerprint <file>")
	fmt.Println("  modlib [global-options] remove <file>...")
	fmt.Println("  modlib [global-options] export [search-options] [-o list.pls]")
	fmt.Println("  modlib render <file> [-o out.wav] [-rate <hz>]")
	fmt.Println("\nSearch Options:")
	fmt.Println("  -text <term>       Free text, * and ? are wildcards")
	fmt.Println("  -fields <list>     filename,title,artist,samples,instruments,comments,personal or all")
	fmt.Println("  -size <min:max>    File size, e.g. 10KiB:2MiB")
	fmt.Println("  -length <min:max>  Duration, e.g. 1m:3m30s")
	fmt.Println("  -date <from:to>    File date, e.g. 1995-01-01:1999-12-31")
	fmt.Println("  -released <from:to> Release date")
	fmt.Println("  -melody <steps>    Note steps, e.g. \"1 -1 2 | 5 5\"")
	fmt.Println("  -fingerprint <fp>  Score every result against a printable fingerprint")
	fmt.Println("  -all               Ignore every filter")
	fmt.Println("  -sort <key>        title, size, date, match or path; -desc reverses")
	fmt.Println("\nExamples:")
	fmt.Println("  modlib scan ~/mods")
	fmt.Println("  modlib search -text \"*axel*\" -fields title,filename")
	fmt.Println("  modlib search -all -fingerprint \"$(modlib fingerprint axel_f.mod)\" -sort match -desc")
}
