// Package cli is the numbered-menu front-end over a booking session.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tripplanner/booking"
	"tripplanner/database"
	"tripplanner/models"
	"tripplanner/services"
)

// CLI reads commands line by line. Run returns nil when the user exits or the
// input ends, and the error when the session hits a fatal ledger failure.
type CLI struct {
	session *booking.Session
	in      *bufio.Scanner
	out     io.Writer
	dir     string
}

func New(session *booking.Session, in io.Reader, out io.Writer) *CLI {
	return &CLI{session: session, in: bufio.NewScanner(in), out: out, dir: "."}
}

// SaveDir sets where option 6 writes its files.
func (c *CLI) SaveDir(dir string) {
	c.dir = dir
}

func (c *CLI) Run(ctx context.Context) error {
	c.header("TRAVEL PLANNING ASSISTANT")
	err := c.collectDetails(ctx)
	if err == nil {
		err = c.mainMenu(ctx)
	}
	if errors.Is(err, io.EOF) {
		c.println("\nGoodbye!")
		return nil
	}
	return err
}

func (c *CLI) mainMenu(ctx context.Context) error {
	for {
		c.header("MAIN MENU")
		c.println("1. View/Edit Travel Details")
		c.println("2. Search and Book Flights")
		c.println("3. Search and Book Hotels")
		c.println("4. Search and Book Activities")
		c.println("5. View Full Itinerary")
		c.println("6. Save Itinerary")
		c.println("7. Exit")

		choice, err := c.prompt("\nEnter your choice (1-7): ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			err = c.editDetails(ctx)
		case "2":
			err = c.stageMenu(ctx, booking.StageFlights)
		case "3":
			err = c.stageMenu(ctx, booking.StageHotels)
		case "4":
			err = c.activitiesMenu(ctx)
		case "5":
			c.printItinerary()
		case "6":
			err = c.save()
		case "7":
			c.println("\nThank you for using the Travel Planning Assistant. Goodbye!")
			return nil
		default:
			c.println("Invalid choice. Please enter a number between 1 and 7.")
		}
		if err != nil {
			return err
		}
	}
}

// ─── Trip details ─────────────────────────────────────────────────────────────

// collectDetails asks for every missing detail until the plan can be searched.
func (c *CLI) collectDetails(ctx context.Context) error {
	if c.session.Plan().HasBookings() {
		return nil
	}
	for {
		missing := c.session.MissingDetails()
		if len(missing) == 0 {
			return nil
		}
		var err error
		switch missing[0] {
		case "departure":
			err = c.askLocation(ctx, "Where are you departing from? ", c.session.SetDeparture)
		case "destination":
			err = c.askLocation(ctx, "Where would you like to go? ", c.session.SetDestination)
		case "dates":
			err = c.askDates()
		case "travelers":
			err = c.askTravelers()
		case "budget":
			err = c.askBudget()
		}
		if err != nil {
			return err
		}
	}
}

func (c *CLI) editDetails(ctx context.Context) error {
	c.header("EDIT TRAVEL DETAILS")
	c.printDetails()
	c.println("\nWhat would you like to change?")
	c.println("1. Departure location")
	c.println("2. Destination location")
	c.println("3. Travel dates")
	c.println("4. Number of travelers")
	c.println("5. Budget")
	c.println("6. Back to main menu")

	choice, err := c.prompt("\nEnter your choice (1-6): ")
	if err != nil {
		return err
	}
	switch choice {
	case "1":
		return c.askLocation(ctx, "New departure city/airport: ", c.session.SetDeparture)
	case "2":
		return c.askLocation(ctx, "New destination city/airport: ", c.session.SetDestination)
	case "3":
		return c.askDates()
	case "4":
		return c.askTravelers()
	case "5":
		return c.changeBudget()
	case "6":
		return nil
	}
	c.println("Invalid choice. Please enter a number between 1 and 6.")
	return nil
}

func (c *CLI) askLocation(ctx context.Context, label string, set func(context.Context, string) (models.Location, error)) error {
	for {
		text, err := c.prompt(label)
		if err != nil {
			return err
		}
		if text == "" {
			continue
		}
		loc, err := set(ctx, text)
		if ferr := c.report(err); ferr != nil {
			return ferr
		}
		if err == nil {
			c.printf("✅ %s\n", loc)
			return nil
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil
		}
	}
}

func (c *CLI) askDates() error {
	for {
		dep, err := c.prompt("Departure date (YYYY-MM-DD): ")
		if err != nil {
			return err
		}
		ret, err := c.prompt("Return date (YYYY-MM-DD): ")
		if err != nil {
			return err
		}
		err = c.session.SetDates(dep, ret)
		if ferr := c.report(err); ferr != nil {
			return ferr
		}
		if err == nil || errors.Is(err, models.ErrInvalidTransition) {
			return nil
		}
	}
}

func (c *CLI) askTravelers() error {
	for {
		text, err := c.prompt(fmt.Sprintf("Number of travelers (1-%d): ", booking.MaxTravelers))
		if err != nil {
			return err
		}
		n, convErr := strconv.Atoi(text)
		if convErr != nil {
			c.println("Please enter a whole number.")
			continue
		}
		err = c.session.SetTravelers(n)
		if ferr := c.report(err); ferr != nil {
			return ferr
		}
		if err == nil || errors.Is(err, models.ErrInvalidTransition) {
			return nil
		}
	}
}

func (c *CLI) askBudget() error {
	for {
		amount, err := c.askAmount("Total budget (USD): ")
		if err != nil {
			return err
		}
		err = c.session.SetBudget(amount)
		if ferr := c.report(err); ferr != nil {
			return ferr
		}
		if err == nil {
			return nil
		}
	}
}

func (c *CLI) changeBudget() error {
	confirm := false
	if c.session.Plan().HasBookings() {
		answer, err := c.prompt("⚠️  Changing the budget will reset all bookings. Continue? (y/n): ")
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") {
			return nil
		}
		confirm = true
	}
	amount, err := c.askAmount("New total budget (USD): ")
	if err != nil {
		return err
	}
	err = c.session.ChangeTotalBudget(amount, confirm)
	if ferr := c.report(err); ferr != nil || err != nil {
		return ferr
	}
	c.println("✅ Budget updated!")
	return nil
}

func (c *CLI) askAmount(label string) (decimal.Decimal, error) {
	for {
		text, err := c.prompt(label)
		if err != nil {
			return decimal.Zero, err
		}
		amount, convErr := decimal.NewFromString(strings.TrimPrefix(strings.ReplaceAll(text, ",", ""), "$"))
		if convErr == nil {
			return amount, nil
		}
		c.println("Please enter an amount, e.g. 2000.")
	}
}

// ─── Flights and hotels ───────────────────────────────────────────────────────

func (c *CLI) stageMenu(ctx context.Context, stage booking.Stage) error {
	if c.booked(stage) {
		return c.bookedMenu(stage)
	}
	title := lo.Ternary(stage == booking.StageFlights, "FLIGHT SEARCH", "HOTEL SEARCH")
	c.header(title)

	options, err := c.session.Search(ctx, stage)
	if ferr := c.report(err); ferr != nil || err != nil {
		return ferr
	}
	if len(options) == 0 {
		c.println("No options fit your remaining budget. Try changing your dates or budget.")
		return nil
	}
	c.printOptions(options)

	for {
		answer, err := c.prompt("\nChoose an option number, X to skip, or ask a question (Enter to go back): ")
		if err != nil {
			return err
		}
		switch {
		case answer == "":
			return nil
		case strings.EqualFold(answer, "x"):
			err := c.session.Skip(stage)
			if ferr := c.report(err); ferr != nil {
				return ferr
			}
			if err == nil {
				c.println("Skipped.")
				return nil
			}
		case isNumber(answer):
			n, _ := strconv.Atoi(answer)
			opt, err := c.session.Confirm(stage, n)
			if ferr := c.report(err); ferr != nil {
				return ferr
			}
			if err == nil {
				c.printf("✅ Booked %s for $%s. Remaining budget: $%s\n",
					opt.Name, opt.Price.StringFixed(2), c.session.Plan().RemainingBudget.StringFixed(2))
				return nil
			}
		default:
			if err := c.ask(ctx, stage, answer); err != nil {
				return err
			}
		}
	}
}

func (c *CLI) booked(stage booking.Stage) bool {
	p := c.session.Plan()
	return (stage == booking.StageFlights && p.Flight != nil) || (stage == booking.StageHotels && p.Hotel != nil)
}

func (c *CLI) bookedMenu(stage booking.Stage) error {
	p := c.session.Plan()
	if stage == booking.StageFlights {
		c.printf("You already booked flight option %d for $%s.\n", p.Flight.OptionIndex, p.Flight.Price.StringFixed(2))
	} else {
		c.printf("You already booked %s (%d nights) for $%s.\n", p.Hotel.Name, p.Hotel.Nights, p.Hotel.Price.StringFixed(2))
	}
	c.println("1. Cancel booking")
	if stage == booking.StageHotels {
		c.println("2. Adjust number of nights")
	}
	c.println("3. Return to main menu")

	choice, err := c.prompt("Enter your choice: ")
	if err != nil {
		return err
	}
	switch {
	case choice == "1":
		refund, err := c.session.Cancel(stage)
		if ferr := c.report(err); ferr != nil || err != nil {
			return ferr
		}
		c.printf("Cancelled. $%s returned to your budget.\n", refund.StringFixed(2))
	case choice == "2" && stage == booking.StageHotels:
		text, err := c.prompt("New number of nights: ")
		if err != nil {
			return err
		}
		nights, convErr := strconv.Atoi(text)
		if convErr != nil {
			c.println("Please enter a whole number.")
			return nil
		}
		h, err := c.session.ModifyHotelNights(nights)
		if ferr := c.report(err); ferr != nil || err != nil {
			return ferr
		}
		c.printf("✅ %d nights, now $%s.\n", h.Nights, h.Price.StringFixed(2))
	}
	return nil
}

// ─── Activities ───────────────────────────────────────────────────────────────

func (c *CLI) activitiesMenu(ctx context.Context) error {
	c.header("ACTIVITIES")
	options, err := c.session.Search(ctx, booking.StageActivities)
	if ferr := c.report(err); ferr != nil || err != nil {
		return ferr
	}
	c.printOptions(options)

	for {
		c.printBookedActivities()
		answer, err := c.prompt("\nAdd an option number, R<n> to remove, D when done, or ask a question (Enter to go back): ")
		if err != nil {
			return err
		}
		upper := strings.ToUpper(answer)
		switch {
		case answer == "":
			return nil
		case upper == "D" || upper == "X":
			c.printf("Done with activities. Remaining budget: $%s\n", c.session.Plan().RemainingBudget.StringFixed(2))
			return nil
		case strings.HasPrefix(upper, "R") && isNumber(strings.TrimSpace(answer[1:])):
			n, _ := strconv.Atoi(strings.TrimSpace(answer[1:]))
			removed, err := c.session.RemoveActivity(n)
			if ferr := c.report(err); ferr != nil {
				return ferr
			}
			if err == nil {
				c.printf("Removed %s. $%s returned to your budget.\n", removed.Name, removed.Price.StringFixed(2))
			}
		case isNumber(answer):
			n, _ := strconv.Atoi(answer)
			a, err := c.session.AddActivity(n)
			if ferr := c.report(err); ferr != nil {
				return ferr
			}
			if err == nil {
				c.printf("✅ Added %s for $%s. Remaining budget: $%s\n",
					a.Name, a.Price.StringFixed(2), c.session.Plan().RemainingBudget.StringFixed(2))
			}
		default:
			if err := c.ask(ctx, booking.StageActivities, answer); err != nil {
				return err
			}
		}
	}
}

func (c *CLI) printBookedActivities() {
	p := c.session.Plan()
	if len(p.Activities) == 0 {
		return
	}
	c.println("\nBooked activities:")
	for i, a := range p.Activities {
		c.printf("  %d. %s - $%s\n", i+1, a.Name, a.Price.StringFixed(2))
	}
	c.printf("Remaining budget: $%s\n", p.RemainingBudget.StringFixed(2))
}

// ─── Output ───────────────────────────────────────────────────────────────────

func (c *CLI) ask(ctx context.Context, stage booking.Stage, question string) error {
	answer, err := c.session.Ask(ctx, stage, question)
	if ferr := c.report(err); ferr != nil || err != nil {
		return ferr
	}
	c.println("\n" + answer)
	return nil
}

// report prints a recoverable error and returns only a fatal one.
func (c *CLI) report(err error) error {
	if err == nil {
		return nil
	}
	if booking.Fatal(err) {
		return err
	}
	c.println("⚠️  " + booking.UserMessage(err))
	return nil
}

func (c *CLI) printOptions(options []models.Option) {
	for _, o := range options {
		estimate := lo.Ternary(o.Estimated, " (estimated)", "")
		c.printf("\nOption %d: %s - $%s%s\n", o.Index, o.Name, o.Price.StringFixed(2), estimate)
		if o.Details != "" {
			c.println(indent(o.Details))
		}
	}
	c.printf("\nRemaining budget: $%s\n", c.session.Plan().RemainingBudget.StringFixed(2))
}

func (c *CLI) printDetails() {
	p := c.session.Plan()
	c.printf("From:      %s\n", locationOrUnset(p.Departure))
	c.printf("To:        %s\n", locationOrUnset(p.Destination))
	c.printf("Dates:     %s to %s\n", lo.CoalesceOrEmpty(p.DepartureDate, "?"), lo.CoalesceOrEmpty(p.ReturnDate, "?"))
	c.printf("Travelers: %d\n", p.Travelers)
	c.printf("Budget:    $%s (remaining $%s)\n", p.TotalBudget.StringFixed(2), p.RemainingBudget.StringFixed(2))
}

func (c *CLI) printItinerary() {
	c.println("\n" + services.Summarize(c.session.Plan()).Text())
}

// save writes <name>.json, which --load reads back, and <name>.txt.
func (c *CLI) save() error {
	name, err := c.prompt("File name (without extension) [trip_plan]: ")
	if err != nil {
		return err
	}
	name = lo.CoalesceOrEmpty(strings.TrimSpace(name), "trip_plan")
	base := filepath.Join(c.dir, name)

	p := c.session.Plan()
	if err := database.SaveFile(base+".json", p); err != nil {
		c.println("⚠️  Could not save the plan: " + err.Error())
		return nil
	}
	if err := os.WriteFile(base+".txt", []byte(services.Summarize(p).Text()), 0o644); err != nil {
		c.println("⚠️  Could not save the itinerary text: " + err.Error())
		return nil
	}
	c.printf("✅ Saved %s.json and %s.txt\n", base, base)
	return nil
}

func (c *CLI) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *CLI) header(title string) {
	line := strings.Repeat("=", 60)
	c.printf("\n%s\n%s\n%s\n", line, title, line)
}

func (c *CLI) println(s string) { fmt.Fprintln(c.out, s) }

func (c *CLI) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func indent(s string) string {
	return "   " + strings.ReplaceAll(s, "\n", "\n   ")
}

func locationOrUnset(l *models.Location) string {
	if l == nil {
		return "?"
	}
	return l.String()
}
