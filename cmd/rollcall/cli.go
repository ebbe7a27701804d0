package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"rollcall/internal/attendance"
	"rollcall/internal/client"
	"rollcall/internal/common"
	"rollcall/internal/export"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/subjects"
)

const keyDeviceID = "device_id"

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New("not signed in, run: rollcall login")
)

type commandLine struct {
	out io.Writer

	api    *client.Client
	local  *client.LocalStore
	holder *session.Holder
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage: rollcall [-api URL] [-state FILE] COMMAND [flags]")
	fmt.Fprintln(cli.out, "Commands:")
	fmt.Fprintln(cli.out, "  login    -role teacher|student [-username U] [-roll N -course C] [-semester N] [-device MODEL]")
	fmt.Fprintln(cli.out, "  logout")
	fmt.Fprintln(cli.out, "  whoami")
	fmt.Fprintln(cli.out, "  subjects [-course C] [-semester N]")
	fmt.Fprintln(cli.out, "  students [-course C] [-semester N]")
	fmt.Fprintln(cli.out, "  stats")
	fmt.Fprintln(cli.out, "  mark     -subject ID -present 1,2,3 [-date yyyy-mm-dd]")
	fmt.Fprintln(cli.out, "  export   -subject ID -window lecture|month|year [-at DATE] [-out DIR]")
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "rollcall", "state.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("rollcall", flag.ContinueOnError)
	global.SetOutput(cli.out)
	apiURL := global.String("api", envOr("ROLLCALL_API", "http://localhost:8081"), "API base URL")
	statePath := global.String("state", envOr("ROLLCALL_STATE", defaultStatePath()), "local state database")
	if err := global.Parse(args[1:]); err != nil {
		return errHelp
	}
	rest := global.Args()
	if len(rest) == 0 {
		cli.printUsage()
		return errHelp
	}

	if err := cli.open(ctx, *apiURL, *statePath); err != nil {
		return err
	}
	defer cli.local.Close()

	if err := cli.ensureDevice(ctx); err != nil {
		fmt.Fprintln(cli.out, "warning: device registration failed:", err)
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "login":
		return cli.login(ctx, cmdArgs)
	case "logout":
		return cli.logout(ctx)
	case "whoami":
		return cli.whoami()
	case "subjects":
		return cli.subjects(ctx, cmdArgs)
	case "students":
		return cli.students(ctx, cmdArgs)
	case "stats":
		return cli.stats(ctx)
	case "mark":
		return cli.mark(ctx, cmdArgs)
	case "export":
		return cli.export(ctx, cmdArgs)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) open(ctx context.Context, apiURL, statePath string) error {
	if err := os.MkdirAll(filepath.Dir(statePath), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	local, err := client.OpenLocalStore(ctx, statePath)
	if err != nil {
		return err
	}
	api := client.New(apiURL)
	holder := session.NewHolder(api, local)
	api.Token = holder.Token
	if err := holder.Init(ctx); err != nil {
		_ = local.Close()
		return err
	}
	cli.api, cli.local, cli.holder = api, local, holder
	return nil
}

// ensureDevice registers this installation once. The first-launch flag is
// only cleared after the API acknowledged the device.
func (cli *commandLine) ensureDevice(ctx context.Context) error {
	first, err := cli.holder.FirstLaunch(ctx)
	if err != nil || !first {
		return err
	}
	id, ok, err := cli.local.Get(ctx, keyDeviceID)
	if err != nil {
		return err
	}
	if !ok {
		id = uuid.NewString()
		if err := cli.local.Set(ctx, keyDeviceID, id); err != nil {
			return err
		}
	}
	isNew, err := cli.api.RegisterDevice(ctx, id)
	if err != nil {
		return err
	}
	if isNew {
		fmt.Fprintln(cli.out, "Welcome to rollcall. This device is now registered.")
	}
	return cli.holder.CompleteFirstLaunch(ctx)
}

func (cli *commandLine) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) login(ctx context.Context, args []string) error {
	fs := cli.newFlags("login")
	role := fs.String("role", session.RoleTeacher, "teacher or student")
	username := fs.String("username", "", "teacher username")
	roll := fs.Int("roll", 0, "student roll number")
	course := fs.String("course", "", "course name")
	semester := fs.Int("semester", 0, "semester")
	device := fs.String("device", "", "device model, checked for teachers")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	switch *role {
	case session.RoleTeacher:
		if *username == "" {
			fs.Usage()
			return errHelp
		}
	case session.RoleStudent:
		if *roll <= 0 || *course == "" {
			fs.Usage()
			return errHelp
		}
	default:
		fs.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return errHelp
	}

	creds := session.Credentials{
		Username:    *username,
		Password:    string(pwd),
		Roll:        *roll,
		Course:      *course,
		Semester:    *semester,
		DeviceModel: *device,
	}
	if err := cli.holder.SignIn(ctx, *role, creds); err != nil {
		if errors.Is(err, common.ErrDeviceNotAllowed) {
			return fmt.Errorf("this device is not allowed to sign in as %s", *username)
		}
		return err
	}
	fmt.Fprintf(cli.out, "Signed in as %s.\n", *role)
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if cli.holder.State() != session.Authenticated {
		fmt.Fprintln(cli.out, "Not signed in.")
		return nil
	}
	if err := cli.holder.SignOut(ctx); err != nil {
		fmt.Fprintln(cli.out, "Signed out locally; the server reported:", err)
		return nil
	}
	fmt.Fprintln(cli.out, "Signed out.")
	return nil
}

func (cli *commandLine) whoami() error {
	p, ok := cli.holder.Current()
	if !ok {
		fmt.Fprintln(cli.out, "Not signed in.")
		return nil
	}
	var rec struct {
		Username string `json:"username"`
		Course   string `json:"course"`
		Semester int    `json:"semester"`
		Roll     int    `json:"roll"`
	}
	_ = json.Unmarshal(p.Record, &rec)
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "role\t%s\n", p.Role)
	fmt.Fprintf(w, "username\t%s\n", rec.Username)
	fmt.Fprintf(w, "course\t%s\n", rec.Course)
	fmt.Fprintf(w, "semester\t%d\n", rec.Semester)
	if p.Role == session.RoleStudent {
		fmt.Fprintf(w, "roll\t%d\n", rec.Roll)
	}
	return w.Flush()
}

func (cli *commandLine) requireSession() error {
	if cli.holder.State() != session.Authenticated {
		return errNotSignedIn
	}
	return nil
}

// call runs an authenticated API call, renewing an expired access token once.
func (cli *commandLine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := cli.holder.Do(ctx, fn)
	if errors.Is(err, common.ErrUnauthorized) && cli.holder.State() != session.Authenticated {
		return fmt.Errorf("session expired: %w", errNotSignedIn)
	}
	return err
}

func (cli *commandLine) subjects(ctx context.Context, args []string) error {
	fs := cli.newFlags("subjects")
	course := fs.String("course", "", "course name")
	semester := fs.Int("semester", 0, "semester")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	var list []subjects.Subject
	err := cli.call(ctx, func(ctx context.Context) (err error) {
		list, err = cli.api.Subjects(ctx, subjects.Filter{Course: *course, Semester: *semester})
		return err
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tSTATUS\tCOURSE\tSEM")
	for _, s := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", s.ID, s.Code, s.Name, s.Status, s.Course, s.Semester)
	}
	return w.Flush()
}

func (cli *commandLine) students(ctx context.Context, args []string) error {
	fs := cli.newFlags("students")
	course := fs.String("course", "", "course name")
	semester := fs.Int("semester", 0, "semester")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	var list []roster.Student
	err := cli.call(ctx, func(ctx context.Context) (err error) {
		list, err = cli.api.Students(ctx, roster.Filter{Course: *course, Semester: *semester})
		return err
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLL\tUSERNAME\tCOURSE\tSEM")
	for _, s := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\n", s.ID, s.Roll, s.Username, s.Course, s.Semester)
	}
	return w.Flush()
}

func (cli *commandLine) stats(ctx context.Context) error {
	if err := cli.requireSession(); err != nil {
		return err
	}
	var list []attendance.SubjectStats
	err := cli.call(ctx, func(ctx context.Context) (err error) {
		list, err = cli.api.SubjectStats(ctx)
		return err
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tTOTAL\tPRESENT\tABSENT\tLATE\tERROR")
	for _, s := range list {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%s\n", s.SubjectID, s.Stats.Total, s.Stats.Present, s.Stats.Absent, s.Stats.Late, s.Error)
	}
	return w.Flush()
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid student id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (cli *commandLine) mark(ctx context.Context, args []string) error {
	fs := cli.newFlags("mark")
	subjectID := fs.Int64("subject", 0, "subject id")
	present := fs.String("present", "", "comma separated ids of present students")
	date := fs.String("date", "", "lecture date, yyyy-mm-dd (default today)")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *subjectID <= 0 {
		fs.Usage()
		return errHelp
	}
	ids, err := parseIDs(*present)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}
	var recs []attendance.Record
	err = cli.call(ctx, func(ctx context.Context) (err error) {
		recs, err = cli.api.MarkClass(ctx, attendance.ClassRequest{SubjectID: *subjectID, Date: *date, Present: ids})
		return err
	})
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, r := range recs {
		counts[r.Status]++
	}
	fmt.Fprintf(cli.out, "Marked %d students: %d present, %d absent.\n",
		len(recs), counts[attendance.StatusPresent], counts[attendance.StatusAbsent])
	return nil
}

func (cli *commandLine) export(ctx context.Context, args []string) error {
	fs := cli.newFlags("export")
	subjectID := fs.Int64("subject", 0, "subject id")
	window := fs.String("window", "lecture", "lecture, month or year")
	at := fs.String("at", "", "date inside the window, yyyy-mm-dd (default today)")
	outDir := fs.String("out", ".", "directory to write the CSV into")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *subjectID <= 0 {
		fs.Usage()
		return errHelp
	}
	w, err := export.ParseWindow(*window)
	if err != nil {
		return err
	}
	when, err := export.ParseAt(*at, time.Local)
	if err != nil {
		return err
	}
	if err := cli.requireSession(); err != nil {
		return err
	}

	var (
		name string
		data []byte
	)
	err = cli.call(ctx, func(ctx context.Context) (err error) {
		name, data, err = cli.api.Export(ctx, *subjectID, w, when)
		return err
	})
	if errors.Is(err, common.ErrNoData) {
		fmt.Fprintln(cli.out, "No attendance records in that window.")
		return nil
	}
	if err != nil {
		return err
	}
	path := filepath.Join(*outDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Saved %s (%d bytes).\n", path, len(data))
	return nil
}
