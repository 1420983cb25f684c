// Command analyze runs the full analysis for one session from the command
// line, without the HTTP server: point it at a deck facts file and a
// recording, and it prints where the report landed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/pitchlab/podium/internal/asr"
	"github.com/pitchlab/podium/internal/judge"
	"github.com/pitchlab/podium/internal/models"
	"github.com/pitchlab/podium/internal/pipeline"
	"github.com/pitchlab/podium/internal/report"
	"github.com/pitchlab/podium/internal/speech"
	"github.com/pitchlab/podium/internal/storage"
)

func main() {
	deckPath := flag.String("deck", "", "path to deck facts JSON (required)")
	audioPath := flag.String("audio", "", "path to the recording (required)")
	timingPath := flag.String("timing", "", "path to slide timing JSON (optional)")
	scriptPath := flag.String("script", "", "path to the rehearsal script (optional)")
	metaPath := flag.String("meta", "", "path to session meta JSON (optional)")
	workDir := flag.String("dir", "./analysis", "working directory for session files")
	flag.Parse()

	if *deckPath == "" || *audioPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment")
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	files, err := storage.NewLocalStore(
		filepath.Join(*workDir, "uploads"), filepath.Join(*workDir, "artifacts"))
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	session := models.NewSession()
	if err := files.CreateSession(session.ID); err != nil {
		log.Fatal("Failed to create session:", err)
	}

	stage(files, session.ID, *deckPath, "deck.json")
	audioName := "audio.webm"
	if filepath.Ext(*audioPath) == ".wav" {
		audioName = "audio.wav"
	}
	stage(files, session.ID, *audioPath, audioName)
	if *timingPath != "" {
		stage(files, session.ID, *timingPath, "timing.json")
	}
	if *scriptPath != "" {
		scriptName := "script.md"
		if filepath.Ext(*scriptPath) == ".txt" {
			scriptName = "script.txt"
		}
		stage(files, session.ID, *scriptPath, scriptName)
	}
	if *metaPath != "" {
		stage(files, session.ID, *metaPath, "meta.json")
	}

	runner := pipeline.NewRunner(
		pipeline.NewTaskStore(), files,
		asr.NewOpenAITranscriber(apiKey), judge.NewOpenAIJudge(apiKey),
		nil, speech.DefaultConfig())

	taskID, err := runner.Start(session.ID)
	if err != nil {
		log.Fatal("Failed to start analysis:", err)
	}
	log.Printf("Session %s, task %s", session.ID, taskID)

	var lastPhase pipeline.Phase
	for {
		task, ok := runner.Task(taskID)
		if !ok {
			log.Fatal("Task disappeared")
		}
		if task.Phase != lastPhase && task.Phase != "" {
			log.Printf("%s (%d%%)", task.Phase, task.ProgressPct)
			lastPhase = task.Phase
		}
		if task.State == pipeline.StateFailed {
			log.Fatalf("Analysis failed: %v", task.Error)
		}
		if task.State == pipeline.StateCompleted {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	data, err := files.ReadArtifact(session.ID, "report.json")
	if err != nil {
		log.Fatal("Report missing after completion:", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		log.Fatal("Report is not valid JSON:", err)
	}

	fmt.Printf("Overall score: %.1f/100\n", rep.OverallScore)
	fmt.Printf("Weak slides:   %v\n", rep.WeakSlides)
	fmt.Printf("Artifacts:     %s\n", filepath.Join(*workDir, "artifacts", session.ID))
}

func stage(files storage.Store, sessionID, src, name string) {
	f, err := os.Open(src)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", src, err)
	}
	defer f.Close()
	if _, err := files.SaveUpload(sessionID, name, f); err != nil {
		log.Fatalf("Failed to stage %s: %v", name, err)
	}
}
