package notification

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/improvdb/improvdb-api/internal/config"
	"github.com/improvdb/improvdb-api/internal/entity"
	userRepo "github.com/improvdb/improvdb-api/internal/modules/user/repository"
	"github.com/improvdb/improvdb-api/pkg/logger"
)

// Service sends the workflow notification emails. Delivery is best effort:
// failures are logged and never fail the primary operation.
type Service interface {
	NotifyResourcePublished(ctx context.Context, resource *entity.Resource)
	NotifyProposalSubmitted(ctx context.Context, proposal *entity.Resource)
}

type emailService struct {
	userRepo userRepo.UserRepository
	host     string
	port     string
	user     string
	pass     string
	from     string
}

func NewEmailService(userRepo userRepo.UserRepository, cfg *config.Config) Service {
	return &emailService{
		userRepo: userRepo,
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		pass:     cfg.SMTPPass,
		from:     cfg.SMTPFrom,
	}
}

func (s *emailService) NotifyResourcePublished(ctx context.Context, resource *entity.Resource) {
	owner, err := s.userRepo.FindByID(ctx, resource.CreatedByID.String())
	if err != nil {
		logger.L().Warn("publish notification skipped: owner lookup failed",
			zap.String("resource_id", resource.ID),
			zap.Error(err),
		)
		return
	}

	subject := fmt.Sprintf("Your resource %q is now live on ImprovDB", resource.Title)
	body := buildPublishedBody(owner.Name, resource)
	s.send([]string{owner.Email}, subject, body)
}

func (s *emailService) NotifyProposalSubmitted(ctx context.Context, proposal *entity.Resource) {
	admins, err := s.userRepo.FindAdmins(ctx)
	if err != nil || len(admins) == 0 {
		logger.L().Warn("proposal notification skipped: no admin recipients",
			zap.String("proposal_id", proposal.ID),
			zap.Error(err),
		)
		return
	}

	recipients := make([]string, 0, len(admins))
	for _, admin := range admins {
		recipients = append(recipients, admin.Email)
	}

	subject := fmt.Sprintf("Edit proposal awaiting review: %s", proposal.Title)
	body := buildProposalBody(proposal)
	s.send(recipients, subject, body)
}

func buildPublishedBody(name string, resource *entity.Resource) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Hi %s,\n\n", name))
	buf.WriteString(fmt.Sprintf("Your resource %q has been approved and published.\n\n", resource.Title))
	buf.WriteString(fmt.Sprintf("It is now visible to everyone at /resource/%s.\n\n", resource.ID))
	buf.WriteString("Thanks for contributing to ImprovDB!\n")
	return buf.String()
}

func buildProposalBody(proposal *entity.Resource) string {
	var buf bytes.Buffer
	buf.WriteString("A new edit proposal is waiting for review.\n\n")
	if proposal.EditProposalOriginalResourceID != nil {
		buf.WriteString(fmt.Sprintf("Original resource: %s\n", *proposal.EditProposalOriginalResourceID))
	}
	buf.WriteString(fmt.Sprintf("Proposal: %s (%s)\n", proposal.Title, proposal.ID))
	return buf.String()
}

func (s *emailService) send(to []string, subject, body string) {
	if s.host == "" {
		logger.L().Debug("email disabled, dropping notification", zap.String("subject", subject))
		return
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nSubject: %s\r\n\r\n%s", s.from, subject, body))

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, to, msg); err != nil {
		logger.L().Warn("failed to send notification email",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
