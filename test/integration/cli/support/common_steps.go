package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cardscan/internal/models"
	"github.com/MeKo-Tech/cardscan/internal/testutil"
	"github.com/MeKo-Tech/cardscan/internal/utils"
)

// syntheticCardFramesAreAvailable writes a few card frames to a temp directory.
func (testCtx *TestContext) syntheticCardFramesAreAvailable() error {
	dir := testCtx.TempPath("frames")
	numbers := []string{"4111 1111 1111 1111", "5500 0000 0000 0004"}
	for i, number := range numbers {
		cfg := testutil.DefaultCardImageConfig()
		cfg.Number = number
		path := filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i))
		if err := utils.SavePNG(path, testutil.GenerateCardImage(cfg)); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	testCtx.FramesDir = dir
	return nil
}

// anEmptyModelsDirectory points the CLI at a models directory with no files.
func (testCtx *TestContext) anEmptyModelsDirectory() error {
	dir := testCtx.TempPath("models")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	testCtx.AddEnvVar(models.EnvModelsDir, dir)
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
	return nil
}

// iRunCommand executes a command line from the project root.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // G204: Commands come from feature files
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(start)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theFileShouldExist checks a path after variable substitution.
func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.substituteCommandVariables(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(path, text string) error {
	path = testCtx.substituteCommandVariables(path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: Paths come from feature files
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain '%s'", path, text)
	}
	return nil
}

// theDirectoryShouldContainFiles counts regular files matching a glob.
func (testCtx *TestContext) theDirectoryShouldContainFiles(dir string, count int, pattern string) error {
	dir = testCtx.substituteCommandVariables(dir)
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return err
	}
	if len(matches) != count {
		return fmt.Errorf("expected %d files matching %s in %s, found %d", count, pattern, dir, len(matches))
	}
	return nil
}

// theJSONOutputShouldDecode checks that every non-empty stdout line is a JSON
// object. Log records go to stderr as JSON too, so they pass as well.
func (testCtx *TestContext) theJSONOutputShouldDecode() error {
	lines := strings.Split(strings.TrimSpace(testCtx.LastOutput), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return errors.New("no output")
	}
	for _, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return fmt.Errorf("line is not a JSON object: %w\nLine: %s", err, line)
		}
	}
	return nil
}

// RegisterCommonSteps registers environment, command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^synthetic card frames are available$`, testCtx.syntheticCardFramesAreAvailable)
	sc.Step(`^an empty models directory$`, testCtx.anEmptyModelsDirectory)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^every output line should be a JSON object$`, testCtx.theJSONOutputShouldDecode)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files matching "([^"]*)"$`,
		testCtx.theDirectoryShouldContainFiles)
}
