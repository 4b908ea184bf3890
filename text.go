package main

import "github.com/Zachkp/ixd-profile/internal/profile"

// Built-in page content, used when PROFILE_FILE does not exist.
const (
	abhishekBio = `Abhishek is an architect from Calicut University, has an experience of 2 years. He’s is very good with people
	and can organise elaborate events very easily. He organised art shows.

	He has a knack for Service Design and works with products a lot. His porfolio projects like puppet and his
	fellowship with barath Digital reflect the same.`

	projectTitle = "Emergency Response Support System"
)

func defaultDocument() *profile.Document {
	return &profile.Document{
		Title: "IXD 2025",
		Logo:  "/images/idc_nav.png",
		Profiles: []profile.Profile{
			{
				Image:        "/images/IXD/abhishek.png",
				Name:         "Abhishek Benny",
				Title:        "Interaction Designer | Architect | Winner of XO Symposium 25",
				Description:  abhishekBio,
				PortfolioURL: "#",
				ResumeURL:    "#",
				EmailURL:     "#",
				LinkedInURL:  "#",
				Projects: []profile.Project{
					{Title: projectTitle, Image: "https://placehold.co/600x400?text=Project+1", URL: "#"},
					{Title: projectTitle, Image: "https://placehold.co/600x400?text=Project+2", URL: "#"},
				},
			},
		},
	}
}
