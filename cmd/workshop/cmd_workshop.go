package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/workshop/internal/carousel"
	"github.com/felixgeelhaar/workshop/internal/workshop"
)

func cmdCourses() error {
	c, err := daemon()
	if err != nil {
		return err
	}
	return listCourses(c, os.Stdout)
}

func listCourses(c *client, w io.Writer) error {
	var st carousel.State
	if err := c.do("GET", "/v1/carousel", nil, &st); err != nil {
		return fmt.Errorf("get courses: %w", err)
	}

	if len(st.Courses) == 0 {
		fmt.Fprintln(w, "No courses in the index.")
		return nil
	}

	fmt.Fprintln(w, "Available Courses:")
	for _, course := range st.Courses {
		marker := " "
		if course.ID == st.SelectedCourseID {
			marker = "›"
		}
		fmt.Fprintf(w, "%s %-20s %s\n", marker, course.ID, course.Title)
		if course.Description != "" {
			fmt.Fprintf(w, "  %-20s %s\n", "", course.Description)
		}
	}
	return nil
}

func cmdSelect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("course id required (see 'workshop courses')")
	}
	c, err := daemon()
	if err != nil {
		return err
	}
	return selectCourse(c, os.Stdout, args[0])
}

func selectCourse(c *client, w io.Writer, id string) error {
	var snap workshop.Snapshot
	body := map[string]string{"course_id": id}
	if err := c.do("POST", "/v1/carousel/commit", body, &snap); err != nil {
		return fmt.Errorf("select %s: %w", id, err)
	}

	fmt.Fprintf(w, "✓ Loaded %s (%d exercises)\n", snap.CourseTitle, snap.ExerciseCount)
	fmt.Fprintln(w, "Run 'workshop begin' to start the first exercise.")
	return nil
}

func cmdBegin(args []string) error {
	index := -1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid exercise index %q", args[0])
		}
		index = n
	}
	c, err := daemon()
	if err != nil {
		return err
	}
	return beginExercise(c, os.Stdout, index)
}

// beginExercise starts the workshop, or jumps to index when it is not
// negative, and prints the exercise with its starter code.
func beginExercise(c *client, w io.Writer, index int) error {
	path := "/v1/workshop/begin"
	if index >= 0 {
		path = fmt.Sprintf("/v1/workshop/exercises/%d", index)
	}

	var snap workshop.Snapshot
	if err := c.do("POST", path, nil, &snap); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	var editor struct {
		Code string `json:"code"`
	}
	if err := c.do("GET", "/v1/workshop/editor", nil, &editor); err != nil {
		return fmt.Errorf("get editor: %w", err)
	}

	fmt.Fprintf(w, "Exercise %d/%d: %s\n", snap.ActiveExercise+1, snap.ExerciseCount, snap.ExerciseTitle)
	if editor.Code != "" {
		fmt.Fprintln(w, "\nStarter code:")
		fmt.Fprintln(w, indent(editor.Code))
	}
	return nil
}

func cmdSubmit(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("file required (use - for stdin)")
	}
	code, err := readSource(args[0])
	if err != nil {
		return err
	}
	c, err := daemon()
	if err != nil {
		return err
	}
	return submitCode(c, os.Stdout, code)
}

func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func submitCode(c *client, w io.Writer, code string) error {
	var fb workshop.Feedback
	if err := c.do("POST", "/v1/workshop/submit", map[string]string{"code": code}, &fb); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	printFeedback(w, &fb)
	return nil
}

func printFeedback(w io.Writer, fb *workshop.Feedback) {
	if !fb.Passed {
		fmt.Fprintf(w, "✗ %s\n", fb.Message)
		for _, unmet := range fb.Unmet {
			fmt.Fprintf(w, "  - %s\n", unmet)
		}
		return
	}

	fmt.Fprintf(w, "✓ %s\n", fb.Message)
	switch {
	case fb.Completed:
		fmt.Fprintln(w, "Workshop complete!")
	default:
		fmt.Fprintf(w, "Next: exercise %d (run 'workshop begin %d')\n", fb.Next+1, fb.Next)
	}
}

func cmdState() error {
	c, err := daemon()
	if err != nil {
		return err
	}
	return showState(c, os.Stdout)
}

func showState(c *client, w io.Writer) error {
	var snap workshop.Snapshot
	if err := c.do("GET", "/v1/workshop", nil, &snap); err != nil {
		return fmt.Errorf("get workshop: %w", err)
	}

	fmt.Fprintf(w, "State:     %s\n", snap.State)
	if snap.CourseID == "" {
		return nil
	}
	fmt.Fprintf(w, "Course:    %s (%s)\n", snap.CourseTitle, snap.CourseID)
	if snap.ExerciseCount > 0 {
		progress := float64(snap.ActiveExercise) / float64(snap.ExerciseCount)
		if snap.State == workshop.StateCompleted {
			progress = 1
		}
		fmt.Fprintf(w, "Exercise:  %d/%d %s\n", snap.ActiveExercise+1, snap.ExerciseCount, snap.ExerciseTitle)
		fmt.Fprintf(w, "Progress:  %s\n", renderProgressBar(progress, 20))
	}
	if snap.LastFeedback != nil {
		fmt.Fprintln(w)
		printFeedback(w, snap.LastFeedback)
	}
	return nil
}

func cmdHint() error {
	c, err := daemon()
	if err != nil {
		return err
	}
	return showHint(c, os.Stdout)
}

func showHint(c *client, w io.Writer) error {
	var resp struct {
		Hint string `json:"hint"`
	}
	if err := c.do("GET", "/v1/workshop/hint", nil, &resp); err != nil {
		return fmt.Errorf("get hint: %w", err)
	}
	if resp.Hint == "" {
		fmt.Fprintln(w, "This exercise has no hint.")
		return nil
	}
	fmt.Fprintf(w, "Hint: %s\n", resp.Hint)
	return nil
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
