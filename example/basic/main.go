package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/handbot"
	"github.com/siherrmann/handbot/helper"
)

const sampleManual = `Manual del Empleado de Aetheria Bank

El seguro médico cubre al empleado, a su cónyuge y a sus hijos menores de 21 años.
El horario de oficina es de lunes a viernes de 8:00 a 17:00 horas.
Los empleados pueden trabajar desde casa dos días por semana con autorización de su jefe.
El código de vestimenta es formal de lunes a jueves y casual los viernes.`

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PORT", dbPort)
	os.Setenv("DB_DATABASE", "database")
	os.Setenv("DB_USERNAME", "user")
	os.Setenv("DB_PASSWORD", "password")

	// Write the sample manual
	dir, err := os.MkdirTemp("", "handbot-basic")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	err = os.WriteFile(filepath.Join(dir, "manual.txt"), []byte(sampleManual), 0o644)
	if err != nil {
		log.Fatalf("Failed to write manual: %v", err)
	}

	config := helper.DefaultConfiguration()
	config.Documents.Path = dir
	config.Retrieval.Store = "postgres"
	config.RequestLog.Backend = "postgres"
	config.Identity.Backend = "postgres"
	config.Identity.Employees = []helper.EmployeeCredentials{
		{EmployeeID: "E100", IDNumber: "0801199012345", EmployeeCode: "12345", HireDate: "2015-03-09", Department: "Operaciones"},
	}

	// Use OpenAI if a key is set, otherwise a local llama-server (answers "unavailable" if not running)
	config.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	if config.LLM.OpenAI.APIKey == "" {
		config.LLM.Backend = "local"
	}

	h, err := handbot.New(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create handbot: %v", err)
	}
	defer h.Close()

	fmt.Println("Ingesting documents...")
	result, err := h.Ingest(ctx)
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	fmt.Printf("Ingested %d documents into %d chunks\n", result.Documents, result.Chunks)

	conversation := []string{
		"Hola",
		"my id number is 0801199012345 and my employee code is 12345",
		"I need a work letter",
		"¿Cuándo puedo tomar vacaciones?",
		"¿Puedo trabajar desde casa?",
	}

	for _, question := range conversation {
		reply := h.Ask(ctx, "whatsapp:+50499990000", question)
		fmt.Printf("\n> %s\n[%s] %s\n", question, reply.Category, reply.Answer)
	}

	counts, err := h.CategoryCounts(ctx)
	if err != nil {
		log.Fatalf("Failed to count categories: %v", err)
	}
	fmt.Printf("\nCategories: %v\n", counts)
}
