// The simulator seeds a running server with vehicles and scheduled
// maintenance through the REST API, then completes a share of the tasks so
// recurring series advance. Useful for exercising the dashboard end to end.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	apiURL    string
	authToken string
	client    = &http.Client{Timeout: 10 * time.Second}
)

type vehicle struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	Year         int     `json:"year"`
	LicensePlate string  `json:"license_plate"`
	Mileage      float64 `json:"mileage"`
	Status       string  `json:"status"`
}

type task struct {
	ID string `json:"id"`
}

func post(path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, apiURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func login() error {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := post("/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp); err != nil {
		return err
	}
	authToken = resp.Token
	return nil
}

func createVehicle(i int) (string, error) {
	makes := []string{"Ford", "Toyota", "Tesla", "Volvo", "MAN"}
	models := []string{"Transit", "Hilux", "Model Y", "FH16", "TGX"}
	idx := rand.Intn(len(makes))

	var created vehicle
	err := post("/api/vehicles", vehicle{
		Type:         []string{"ICE", "EV"}[rand.Intn(2)],
		Make:         makes[idx],
		Model:        models[idx],
		Year:         2018 + rand.Intn(7),
		LicensePlate: fmt.Sprintf("FLT-%03d", i),
		Mileage:      float64(rand.Intn(200000)),
		Status:       "active",
	}, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func scheduleMaintenance(vehicleID string) (string, error) {
	descriptions := []string{"Oil change", "Tire rotation", "Brake inspection", "Battery service", "Annual inspection"}
	frequencies := []string{"monthly", "quarterly", "semi-annual", "annual"}
	priorities := []string{"low", "medium", "high", "critical"}

	payload := map[string]interface{}{
		"vehicle_id":       vehicleID,
		"description":      descriptions[rand.Intn(len(descriptions))],
		"maintenance_type": "preventive",
		"priority":         priorities[rand.Intn(len(priorities))],
		"schedule_type":    "one-time",
		"scheduled_date":   time.Now().AddDate(0, 0, rand.Intn(45)).Format("2006-01-02"),
	}
	if rand.Intn(2) == 0 {
		payload["schedule_type"] = "recurring"
		payload["frequency"] = frequencies[rand.Intn(len(frequencies))]
		payload["recurrence_end_date"] = time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	}

	var created task
	if err := post("/api/maintenance/scheduled", payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func completeTask(taskID string) error {
	cost := 50 + rand.Float64()*450
	return post("/api/maintenance/scheduled/"+taskID+"/complete", map[string]interface{}{
		"actual_cost": cost,
	}, nil)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, relying on environment")
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	apiURL = os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	vehicleCount := 5
	if raw := os.Getenv("SIM_VEHICLES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			vehicleCount = parsed
		}
	}

	if err := login(); err != nil {
		log.WithError(err).Fatal("login failed")
	}
	log.Info("logged in")

	var taskIDs []string
	for i := 0; i < vehicleCount; i++ {
		vehicleID, err := createVehicle(i)
		if err != nil {
			log.WithError(err).Error("failed to create vehicle")
			continue
		}
		log.WithField("vehicle_id", vehicleID).Info("created vehicle")

		for j := 0; j < 1+rand.Intn(3); j++ {
			taskID, err := scheduleMaintenance(vehicleID)
			if err != nil {
				log.WithError(err).Error("failed to schedule maintenance")
				continue
			}
			taskIDs = append(taskIDs, taskID)
		}
	}
	log.WithField("tasks", len(taskIDs)).Info("scheduled maintenance tasks")

	completed := 0
	for _, id := range taskIDs {
		if rand.Intn(3) != 0 {
			continue
		}
		if err := completeTask(id); err != nil {
			log.WithError(err).WithField("task_id", id).Error("failed to complete task")
			continue
		}
		completed++
	}
	log.WithField("completed", completed).Info("simulation finished")
}
