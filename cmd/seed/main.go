package main

import (
	"flag"
	"log"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/database"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Loads a small development dataset: two clients with workflows and
// open invoices, an admin login and one client login. Safe to run
// repeatedly; existing rows are skipped by email or external id.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	clientRepo := repositories.NewClientRepository(db)
	userRepo := repositories.NewUserRepository(db)
	workflowRepo := repositories.NewWorkflowRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	ticketRepo := repositories.NewTicketRepository(db)

	bakkerij, freshBakkerij := seedClient(clientRepo, &models.Client{
		CompanyName:  "Bakkerij Jansen",
		ContactName:  "Petra Jansen",
		Email:        "petra@bakkerijjansen.nl",
		Phone:        "+31 6 1234 5678",
		PlanTier:     "standard",
		SetupFee:     decimal.NewFromInt(750),
		MonthlyFee:   decimal.NewFromInt(250),
		BillingCycle: "monthly",
	})
	fietsen, freshFietsen := seedClient(clientRepo, &models.Client{
		CompanyName:  "Fietsen de Vries",
		ContactName:  "Koen de Vries",
		Email:        "koen@fietsendevries.nl",
		PlanTier:     "premium",
		SetupFee:     decimal.NewFromInt(1500),
		MonthlyFee:   decimal.NewFromInt(600),
		BillingCycle: "monthly",
	})

	seedUser(userRepo, "admin@monoliet.nl", "admin123", "Beheerder", "admin", nil)
	seedUser(userRepo, "petra@bakkerijjansen.nl", "welkom01", "Petra Jansen", "client", &bakkerij.ID)

	seedWorkflow(workflowRepo, bakkerij.ID, "Bestellingen naar boekhouding", "n8n-wf-3v8KpQ")
	seedWorkflow(workflowRepo, bakkerij.ID, "Voorraad alerts", "n8n-wf-9mTzLx")
	seedWorkflow(workflowRepo, fietsen.ID, "Reparatie planning sync", "n8n-wf-1aBcDe")

	// Invoices and tickets have no natural key to skip on, so they are
	// only created alongside a fresh client.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if freshBakkerij {
		seedInvoice(invoiceRepo, bakkerij.ID, decimal.NewFromInt(250), models.InvoiceTypeMonthly, today.AddDate(0, 0, 14))
		// Past due; the next invoice sweep marks it overdue.
		seedInvoice(invoiceRepo, bakkerij.ID, decimal.NewFromInt(250), models.InvoiceTypeMonthly, today.AddDate(0, 0, -10))

		if err := ticketRepo.Create(&models.SupportTicket{
			ClientID: bakkerij.ID,
			Subject:  "Bestellingen komen dubbel binnen",
			Description: "Sinds gisteren staan orders twee keer in de boekhouding. " +
				"Kan er naar de koppeling gekeken worden?",
			Priority: models.PriorityHigh,
		}); err != nil {
			log.Printf("Failed to seed ticket: %v", err)
		}
	}
	if freshFietsen {
		seedInvoice(invoiceRepo, fietsen.ID, decimal.NewFromInt(1500), models.InvoiceTypeSetup, today.AddDate(0, 0, 7))
	}

	log.Println("Seeding complete")
}

func seedClient(repo *repositories.ClientRepository, client *models.Client) (*models.Client, bool) {
	existing, err := repo.GetByEmail(client.Email)
	if err != nil {
		log.Fatalf("Failed to look up client %s: %v", client.Email, err)
	}
	if existing != nil {
		log.Printf("Skipping existing client %s", client.CompanyName)
		return existing, false
	}
	if err := repo.Create(client); err != nil {
		log.Fatalf("Failed to seed client %s: %v", client.CompanyName, err)
	}
	log.Printf("Seeded client %s (%s)", client.CompanyName, client.ID)
	return client, true
}

func seedUser(repo *repositories.UserRepository, email, password, fullName, role string, clientID *string) {
	existing, err := repo.GetByEmail(email)
	if err != nil {
		log.Fatalf("Failed to look up user %s: %v", email, err)
	}
	if existing != nil {
		log.Printf("Skipping existing user %s", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	if err := repo.Create(&models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		ClientID:     clientID,
	}); err != nil {
		log.Fatalf("Failed to seed user %s: %v", email, err)
	}
	log.Printf("Seeded user %s (password: %s)", email, password)
}

func seedWorkflow(repo *repositories.WorkflowRepository, clientID, name, externalID string) {
	existing, err := repo.GetByExternalID(externalID)
	if err != nil {
		log.Fatalf("Failed to look up workflow %s: %v", externalID, err)
	}
	if existing != nil {
		log.Printf("Skipping existing workflow %s", name)
		return
	}
	if err := repo.Create(&models.Workflow{
		ClientID:   clientID,
		Name:       name,
		ExternalID: externalID,
	}); err != nil {
		log.Fatalf("Failed to seed workflow %s: %v", name, err)
	}
	log.Printf("Seeded workflow %s", name)
}

func seedInvoice(repo *repositories.InvoiceRepository, clientID string, amount decimal.Decimal, typ models.InvoiceType, dueDate time.Time) {
	inv := &models.Invoice{
		ClientID: clientID,
		Amount:   amount,
		Type:     typ,
		Status:   models.InvoicePending,
		DueDate:  dueDate,
	}
	if err := repo.Create(inv); err != nil {
		log.Printf("Failed to seed invoice for %s: %v", clientID, err)
		return
	}
	log.Printf("Seeded invoice %s (due %s)", inv.InvoiceNumber, dueDate.Format(time.DateOnly))
}
